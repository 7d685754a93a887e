// Package hierarchy holds the notebook → section → page collections, links
// them into a tree and caches them in a local file.
package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/takak2166/onenotecli/internal/fileutil"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/models"
)

// ErrNoCache is returned by Load when the cache file is missing or unreadable
var ErrNoCache = errors.New("no hierarchy cache")

//go:generate mockgen -source=store.go -destination=mock_hierarchy/mock_hierarchy.go -package=mock_hierarchy

// Fetcher retrieves one complete collection from the service
type Fetcher interface {
	FetchCollection(ctx context.Context, kind models.Kind) ([]models.Entity, int, error)
}

// Field selects the attribute Find compares against
type Field int

const (
	FieldID Field = iota
	FieldName
	FieldParentID
	FieldParentName
)

// Store owns the three flat collections. They are the source of truth; the
// Children and Parent links of each entity are rebuilt from them by BuildTree.
type Store struct {
	Notebooks []models.Entity
	Sections  []models.Entity
	Pages     []models.Entity

	path string
}

type cacheDocument struct {
	Notebooks []models.Entity `json:"notebooks"`
	Sections  []models.Entity `json:"sections"`
	Pages     []models.Entity `json:"pages"`
}

// NewStore creates an empty store cached at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the cache file location
func (s *Store) Path() string {
	return s.path
}

// Collection returns the flat collection of one level
func (s *Store) Collection(kind models.Kind) []models.Entity {
	switch kind {
	case models.KindNotebook:
		return s.Notebooks
	case models.KindSection:
		return s.Sections
	case models.KindPage:
		return s.Pages
	}
	return nil
}

// BuildTree links every section to its notebook and every page to its
// section. Entities whose parent id matches nothing stay unlinked.
func (s *Store) BuildTree() {
	for _, level := range [][]models.Entity{s.Notebooks, s.Sections, s.Pages} {
		for i := range level {
			level[i].Children = nil
			level[i].Parent = models.NoParent
		}
	}
	link(s.Notebooks, s.Sections)
	link(s.Sections, s.Pages)
}

func link(parents, children []models.Entity) {
	index := make(map[string]int, len(parents))
	for i, p := range parents {
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = i
		}
	}
	for i := range children {
		p, ok := index[children[i].ParentID]
		if !ok {
			continue
		}
		parents[p].Children = append(parents[p].Children, i)
		children[i].Parent = p
	}
}

// Children returns the linked children of the i-th entity of kind
func (s *Store) Children(kind models.Kind, i int) []models.Entity {
	var parents, next []models.Entity
	switch kind {
	case models.KindNotebook:
		parents, next = s.Notebooks, s.Sections
	case models.KindSection:
		parents, next = s.Sections, s.Pages
	default:
		return nil
	}
	if i < 0 || i >= len(parents) {
		return nil
	}

	out := make([]models.Entity, 0, len(parents[i].Children))
	for _, c := range parents[i].Children {
		out = append(out, next[c])
	}
	return out
}

// Parent returns the linked parent of the i-th entity of kind
func (s *Store) Parent(kind models.Kind, i int) (models.Entity, bool) {
	var level, prev []models.Entity
	switch kind {
	case models.KindSection:
		level, prev = s.Sections, s.Notebooks
	case models.KindPage:
		level, prev = s.Pages, s.Sections
	default:
		return models.Entity{}, false
	}
	if i < 0 || i >= len(level) || !level[i].Linked() {
		return models.Entity{}, false
	}
	return prev[level[i].Parent], true
}

// Find returns every entity of kind whose field equals value
func (s *Store) Find(kind models.Kind, field Field, value string) []models.Entity {
	var out []models.Entity
	for _, e := range s.Collection(kind) {
		if fieldValue(e, field) == value {
			out = append(out, e)
		}
	}
	return out
}

func fieldValue(e models.Entity, field Field) string {
	switch field {
	case FieldID:
		return e.ID
	case FieldName:
		return e.Name
	case FieldParentID:
		return e.ParentID
	case FieldParentName:
		return e.ParentName
	}
	return ""
}

// Persist writes the three collections to the cache file
func (s *Store) Persist() error {
	doc := cacheDocument{
		Notebooks: nonNil(s.Notebooks),
		Sections:  nonNil(s.Sections),
		Pages:     nonNil(s.Pages),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode hierarchy: %w", err)
	}
	if err := fileutil.WritePrivate(s.path, data); err != nil {
		return fmt.Errorf("failed to write hierarchy cache: %w", err)
	}

	logger.Debug("Persisted hierarchy cache", map[string]interface{}{
		"path":      s.path,
		"notebooks": len(s.Notebooks),
		"sections":  len(s.Sections),
		"pages":     len(s.Pages),
	})
	return nil
}

// Load replaces the collections with the cache file content and rebuilds the
// tree. On failure the store is left untouched and ErrNoCache is returned.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCache, err)
	}

	doc, err := decodeCache(data)
	if err != nil {
		logger.Warn("Ignoring unreadable hierarchy cache", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrNoCache, err)
	}

	s.Notebooks = withKind(doc.Notebooks, models.KindNotebook)
	s.Sections = withKind(doc.Sections, models.KindSection)
	s.Pages = withKind(doc.Pages, models.KindPage)
	s.BuildTree()

	logger.Debug("Loaded hierarchy cache", map[string]interface{}{
		"path":      s.path,
		"notebooks": len(s.Notebooks),
		"sections":  len(s.Sections),
		"pages":     len(s.Pages),
	})
	return nil
}

// decodeCache requires all three collections to be present and not null
func decodeCache(data []byte) (*cacheDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("cache document is null")
	}

	doc := &cacheDocument{}
	for _, field := range []struct {
		key  string
		dest *[]models.Entity
	}{
		{"notebooks", &doc.Notebooks},
		{"sections", &doc.Sections},
		{"pages", &doc.Pages},
	} {
		msg, ok := raw[field.key]
		if !ok || string(msg) == "null" {
			return nil, fmt.Errorf("cache document has no %s", field.key)
		}
		if err := json.Unmarshal(msg, field.dest); err != nil {
			return nil, fmt.Errorf("%s: %w", field.key, err)
		}
	}
	return doc, nil
}

// RefreshAll fetches notebooks, sections and pages in that order. The
// collections are only replaced, linked and persisted when every fetch ends
// in 200; otherwise the previous collections stay and the failing status is
// returned.
func (s *Store) RefreshAll(ctx context.Context, f Fetcher) (int, error) {
	logger.Info("Refreshing hierarchy")

	fetched := make(map[models.Kind][]models.Entity, 3)
	for _, kind := range []models.Kind{models.KindNotebook, models.KindSection, models.KindPage} {
		entities, status, err := f.FetchCollection(ctx, kind)
		if err != nil {
			return status, fmt.Errorf("failed to fetch %ss: %w", kind, err)
		}
		if status != http.StatusOK {
			logger.Warn("Hierarchy refresh aborted", map[string]interface{}{
				"kind":   string(kind),
				"status": status,
			})
			return status, nil
		}
		fetched[kind] = entities
	}

	s.Notebooks = fetched[models.KindNotebook]
	s.Sections = fetched[models.KindSection]
	s.Pages = fetched[models.KindPage]
	s.BuildTree()

	if err := s.Persist(); err != nil {
		return http.StatusOK, err
	}

	logger.Info("Hierarchy refreshed", map[string]interface{}{
		"notebooks": len(s.Notebooks),
		"sections":  len(s.Sections),
		"pages":     len(s.Pages),
	})
	return http.StatusOK, nil
}

func withKind(entities []models.Entity, kind models.Kind) []models.Entity {
	for i := range entities {
		entities[i].Kind = kind
	}
	return entities
}

func nonNil(entities []models.Entity) []models.Entity {
	if entities == nil {
		return []models.Entity{}
	}
	return entities
}
