package printer

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/takak2166/onenotecli/internal/hierarchy"
	"github.com/takak2166/onenotecli/internal/models"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func day(d int) time.Time {
	return time.Date(2023, 4, d, 18, 5, 0, 0, time.UTC)
}

func fixtureStore() *hierarchy.Store {
	s := hierarchy.NewStore("")
	s.Notebooks = []models.Entity{
		models.NewEntity(models.KindNotebook, "nb1", "Work", "", "", day(1), day(9)),
		models.NewEntity(models.KindNotebook, "nb2", "Home", "", "", day(1), day(2)),
	}
	s.Sections = []models.Entity{
		models.NewEntity(models.KindSection, "s1", "Meetings", "nb1", "Work", day(1), day(3)),
		models.NewEntity(models.KindSection, "s2", "Ideas", "nb1", "Work", day(1), day(5)),
		models.NewEntity(models.KindSection, "s3", "Garden", "nb2", "Home", day(1), day(4)),
	}
	s.Pages = []models.Entity{
		models.NewEntity(models.KindPage, "p1", "Standup", "s1", "Meetings", day(1), day(2)),
		models.NewEntity(models.KindPage, "p2", "Retro", "s1", "Meetings", day(1), day(7)),
		models.NewEntity(models.KindPage, "p3", "Seeds", "s3", "Garden", day(1), day(4)),
		models.NewEntity(models.KindPage, "p4", "Stray", "sX", "Nowhere", day(1), day(3)),
	}
	s.BuildTree()
	return s
}

func TestList(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.Kind
		opts     ListOptions
		expected string
	}{
		{
			name:     "Notebooks by name",
			kind:     models.KindNotebook,
			expected: "Home\nWork\n",
		},
		{
			name:     "Pages newest first",
			kind:     models.KindPage,
			opts:     ListOptions{ByTime: true},
			expected: "Retro\nSeeds\nStray\nStandup\n",
		},
		{
			name: "Long notebooks",
			kind: models.KindNotebook,
			opts: ListOptions{Long: true},
			expected: "2023 Apr 02 18:05 nb2 \t[Home]\n" +
				"2023 Apr 09 18:05 nb1 \t[Work]\n",
		},
		{
			name: "Long sections",
			kind: models.KindSection,
			opts: ListOptions{Long: true, ByTime: true},
			expected: "2023 Apr 05 18:05 s2 \t[Ideas] (Work)\n" +
				"2023 Apr 04 18:05 s3 \t[Garden] (Home)\n" +
				"2023 Apr 03 18:05 s1 \t[Meetings] (Work)\n",
		},
		{
			name: "Long pages",
			kind: models.KindPage,
			opts: ListOptions{Long: true},
			expected: "2023 Apr 07 18:05 p2 \t[Retro] (Work -> Meetings)\n" +
				"2023 Apr 04 18:05 p3 \t[Seeds] (Home -> Garden)\n" +
				"2023 Apr 02 18:05 p1 \t[Standup] (Work -> Meetings)\n" +
				"2023 Apr 03 18:05 p4 \t[Stray] (? -> Nowhere)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).List(fixtureStore(), tt.kind, tt.opts)
			if got := buf.String(); got != tt.expected {
				t.Errorf("List() =\n%s\nwant\n%s", got, tt.expected)
			}
		})
	}
}

func TestTree(t *testing.T) {
	expected := "├── Work\n" +
		"│   ├── Meetings\n" +
		"│   │   ├── Standup\n" +
		"│   │   └── Retro\n" +
		"│   └── Ideas\n" +
		"└── Home\n" +
		"    └── Garden\n" +
		"        └── Seeds\n"

	var buf bytes.Buffer
	New(&buf).Tree(fixtureStore())
	if got := buf.String(); got != expected {
		t.Errorf("Tree() =\n%s\nwant\n%s", got, expected)
	}
}

func TestTreeEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Tree(hierarchy.NewStore(""))
	if buf.Len() != 0 {
		t.Errorf("Tree() of an empty store = %q, want nothing", buf.String())
	}
}

func TestCreateMessage(t *testing.T) {
	tests := []struct {
		status   int
		expected string
		ok       bool
	}{
		{201, "Page Retro in section Meetings is created successfully (201)", true},
		{401, "Error 401: Authorization failed", false},
		{403, "Error 403: You are not permitted to perform the requested operation", false},
		{500, "Error 500: page Retro wasn't created in section Meetings", false},
	}

	for _, tt := range tests {
		msg, ok := CreateMessage("Retro", "Meetings", tt.status)
		if msg != tt.expected || ok != tt.ok {
			t.Errorf("CreateMessage(%d) = %q, %v, want %q, %v", tt.status, msg, ok, tt.expected, tt.ok)
		}
	}
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	if !p.CreateResult("Retro", "Meetings", 201) {
		t.Error("CreateResult(201) = false, want true")
	}
	p.NotFound(models.KindPage, "Retro")
	p.Error(errors.New("boom"))

	expected := "Page Retro in section Meetings is created successfully (201)\n" +
		"Error: page 'Retro' isn't found\n" +
		"Error: boom\n"
	if got := buf.String(); got != expected {
		t.Errorf("messages =\n%s\nwant\n%s", got, expected)
	}
}
