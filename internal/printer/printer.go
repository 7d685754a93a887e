// Package printer renders the hierarchy and command results for the terminal
package printer

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/fatih/color"
	"github.com/takak2166/onenotecli/internal/hierarchy"
	"github.com/takak2166/onenotecli/internal/models"
)

const timeLayout = "2006 Jan 02 15:04"

// Tree glyphs
const (
	branchGlyph = "├──"
	lastGlyph   = "└──"
	pipeIndent  = "│   "
	blankIndent = "    "
)

// unlinkedName stands in for the notebook of a page whose section is unknown
const unlinkedName = "?"

// ListOptions controls a listing
type ListOptions struct {
	Long bool
	// ByTime sorts by last modification, newest first, instead of by name
	ByTime bool
}

// Printer writes listings and messages to out
type Printer struct {
	out  io.Writer
	bold *color.Color
	red  *color.Color
}

// New creates a Printer writing to out
func New(out io.Writer) *Printer {
	return &Printer{
		out:  out,
		bold: color.New(color.Bold),
		red:  color.New(color.FgRed),
	}
}

// List prints the collection of kind
func (p *Printer) List(s *hierarchy.Store, kind models.Kind, opts ListOptions) {
	entities := s.Collection(kind)
	for _, i := range order(entities, opts.ByTime) {
		e := entities[i]
		if !opts.Long {
			fmt.Fprintln(p.out, e.Name)
			continue
		}

		line := fmt.Sprintf("%s %s \t[%s]", e.LastModifiedTime.Format(timeLayout), e.ID, e.Name)
		switch kind {
		case models.KindSection:
			line += fmt.Sprintf(" (%s)", e.ParentName)
		case models.KindPage:
			notebook := unlinkedName
			if section, ok := s.Parent(models.KindPage, i); ok {
				notebook = section.ParentName
			}
			line += fmt.Sprintf(" (%s -> %s)", notebook, e.ParentName)
		}
		fmt.Fprintln(p.out, line)
	}
}

// order returns the indexes of entities in listing order
func order(entities []models.Entity, byTime bool) []int {
	idx := make([]int, len(entities))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := entities[idx[a]], entities[idx[b]]
		if byTime {
			return ea.LastModifiedTime.After(eb.LastModifiedTime)
		}
		return ea.Name < eb.Name
	})
	return idx
}

// Tree prints notebooks, their sections and their pages with box-drawing
// branches. Orphans are not part of the tree.
func (p *Printer) Tree(s *hierarchy.Store) {
	for i, nb := range s.Notebooks {
		lastNb := i == len(s.Notebooks)-1
		p.branch("", lastNb, p.bold.Sprint(nb.Name))

		nbPrefix := indent("", lastNb)
		for j, si := range nb.Children {
			lastSec := j == len(nb.Children)-1
			sec := s.Sections[si]
			p.branch(nbPrefix, lastSec, sec.Name)

			secPrefix := indent(nbPrefix, lastSec)
			for k, pi := range sec.Children {
				p.branch(secPrefix, k == len(sec.Children)-1, s.Pages[pi].Name)
			}
		}
	}
}

func (p *Printer) branch(prefix string, last bool, name string) {
	glyph := branchGlyph
	if last {
		glyph = lastGlyph
	}
	fmt.Fprintf(p.out, "%s%s %s\n", prefix, glyph, name)
}

func indent(prefix string, last bool) string {
	if last {
		return prefix + blankIndent
	}
	return prefix + pipeIndent
}

// CreateMessage describes the outcome of a page creation and reports whether
// it succeeded
func CreateMessage(title, section string, status int) (string, bool) {
	switch {
	case status >= 200 && status < 300:
		return fmt.Sprintf("Page %s in section %s is created successfully (%d)", title, section, status), true
	case status == http.StatusUnauthorized:
		return "Error 401: Authorization failed", false
	case status == http.StatusForbidden:
		return "Error 403: You are not permitted to perform the requested operation", false
	default:
		return fmt.Sprintf("Error %d: page %s wasn't created in section %s", status, title, section), false
	}
}

// CreateResult prints the outcome of a page creation
func (p *Printer) CreateResult(title, section string, status int) bool {
	msg, ok := CreateMessage(title, section, status)
	if ok {
		fmt.Fprintln(p.out, msg)
	} else {
		p.red.Fprintln(p.out, msg)
	}
	return ok
}

// Error prints err in red
func (p *Printer) Error(err error) {
	p.red.Fprintf(p.out, "Error: %v\n", err)
}

// NotFound prints the message for a name that matches no entity of kind
func (p *Printer) NotFound(kind models.Kind, name string) {
	p.red.Fprintf(p.out, "Error: %s '%s' isn't found\n", kind, name)
}
