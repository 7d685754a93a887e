package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takak2166/onenotecli/internal/hierarchy/mock_hierarchy"
	"github.com/takak2166/onenotecli/internal/models"
)

var (
	created  = time.Date(2023, 3, 1, 9, 30, 0, 0, time.UTC)
	modified = time.Date(2023, 4, 2, 18, 5, 12, 0, time.UTC)
)

func fixture() ([]models.Entity, []models.Entity, []models.Entity) {
	notebooks := []models.Entity{
		models.NewEntity(models.KindNotebook, "nb1", "Work", "", "", created, modified),
		models.NewEntity(models.KindNotebook, "nb2", "Home", "", "", created, modified),
	}
	sections := []models.Entity{
		models.NewEntity(models.KindSection, "s1", "Meetings", "nb1", "Work", created, modified),
		models.NewEntity(models.KindSection, "s2", "Ideas", "nb1", "Work", created, modified),
		models.NewEntity(models.KindSection, "s3", "Lost", "nbX", "Gone", created, modified),
	}
	pages := []models.Entity{
		models.NewEntity(models.KindPage, "p1", "Standup", "s1", "Meetings", created, modified),
		models.NewEntity(models.KindPage, "p2", "Garden", "s2", "Ideas", created, modified),
		models.NewEntity(models.KindPage, "p3", "Retro", "s1", "Meetings", created, modified),
		models.NewEntity(models.KindPage, "p4", "Stray", "sX", "Nowhere", created, modified),
	}
	return notebooks, sections, pages
}

func newFixtureStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "hierarchy.json"))
	s.Notebooks, s.Sections, s.Pages = fixture()
	s.BuildTree()
	return s
}

func names(entities []models.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name)
	}
	return out
}

func TestBuildTree(t *testing.T) {
	s := newFixtureStore(t)

	assert.Equal(t, []string{"Meetings", "Ideas"}, names(s.Children(models.KindNotebook, 0)))
	assert.Empty(t, s.Children(models.KindNotebook, 1))
	assert.Equal(t, []string{"Standup", "Retro"}, names(s.Children(models.KindSection, 0)))
	assert.Equal(t, []string{"Garden"}, names(s.Children(models.KindSection, 1)))

	// Orphans stay in the flat collections without a parent.
	assert.Len(t, s.Sections, 3)
	assert.False(t, s.Sections[2].Linked())
	assert.Len(t, s.Pages, 4)
	assert.False(t, s.Pages[3].Linked())

	for i, sec := range s.Sections {
		for _, c := range sec.Children {
			assert.Equal(t, i, s.Pages[c].Parent, "page %s", s.Pages[c].ID)
		}
	}

	parent, ok := s.Parent(models.KindPage, 2)
	require.True(t, ok)
	assert.Equal(t, "s1", parent.ID)
	_, ok = s.Parent(models.KindSection, 2)
	assert.False(t, ok)
	_, ok = s.Parent(models.KindNotebook, 0)
	assert.False(t, ok)
}

func TestBuildTreeIsIdempotent(t *testing.T) {
	s := newFixtureStore(t)
	before := append([]models.Entity(nil), s.Sections...)

	s.BuildTree()

	if diff := cmp.Diff(before, s.Sections); diff != "" {
		t.Errorf("BuildTree() changed links on rebuild (-want +got):\n%s", diff)
	}
}

func TestFind(t *testing.T) {
	s := newFixtureStore(t)

	tests := []struct {
		name  string
		kind  models.Kind
		field Field
		value string
		want  []string
	}{
		{"Page by name", models.KindPage, FieldName, "Retro", []string{"p3"}},
		{"Pages by parent name", models.KindPage, FieldParentName, "Meetings", []string{"p1", "p3"}},
		{"Section by id", models.KindSection, FieldID, "s2", []string{"s2"}},
		{"Sections by parent id", models.KindSection, FieldParentID, "nb1", []string{"s1", "s2"}},
		{"No match", models.KindNotebook, FieldName, "Missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range s.Find(tt.kind, tt.field, tt.value) {
				got = append(got, e.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Find() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPersistLoad(t *testing.T) {
	s := newFixtureStore(t)
	require.NoError(t, s.Persist())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := NewStore(s.Path())
	require.NoError(t, loaded.Load())

	if diff := cmp.Diff(s.Notebooks, loaded.Notebooks); diff != "" {
		t.Errorf("notebooks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Sections, loaded.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Pages, loaded.Pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistFormat(t *testing.T) {
	s := newFixtureStore(t)
	require.NoError(t, s.Persist())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["pages"], 4)

	page := doc["pages"][0]
	assert.Equal(t, "page", page["type"])
	assert.Equal(t, "p1", page["id"])
	assert.Equal(t, "s1", page["parent_entity"])
	assert.Equal(t, []interface{}{}, page["children"])

	assert.Nil(t, doc["notebooks"][0]["parent_id"])
	assert.Nil(t, doc["pages"][3]["parent_entity"], "orphans have no parent entity")
	assert.Equal(t, []interface{}{}, doc["notebooks"][0]["children"], "children are never persisted")
}

func TestPersistLoadEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "hierarchy.json"))
	require.NoError(t, s.Persist())

	reloaded := NewStore(s.Path())
	require.NoError(t, reloaded.Load())
	assert.Empty(t, reloaded.Notebooks)
	assert.Empty(t, reloaded.Pages)
}

func TestLoadFailureKeepsStore(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{name: "Missing file"},
		{name: "Corrupt file", content: strPtr("{not json")},
		{name: "Record without id", content: strPtr(`{"notebooks":[{"type":"notebook","name":"x"}],"sections":[],"pages":[]}`)},
		{name: "Empty object", content: strPtr(`{}`)},
		{name: "Null document", content: strPtr(`null`)},
		{name: "Unrelated keys", content: strPtr(`{"foo":1}`)},
		{name: "Null collection", content: strPtr(`{"notebooks":[],"sections":null,"pages":[]}`)},
		{name: "Missing pages", content: strPtr(`{"notebooks":[],"sections":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixtureStore(t)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(s.Path(), []byte(*tt.content), 0600))
			}
			before := append([]models.Entity(nil), s.Pages...)

			err := s.Load()
			assert.True(t, errors.Is(err, ErrNoCache), "Load() error = %v", err)
			assert.Equal(t, before, s.Pages)
		})
	}
}

func TestRefreshAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notebooks, sections, pages := fixture()
	f := mock_hierarchy.NewMockFetcher(ctrl)
	gomock.InOrder(
		f.EXPECT().FetchCollection(gomock.Any(), models.KindNotebook).Return(notebooks, http.StatusOK, nil),
		f.EXPECT().FetchCollection(gomock.Any(), models.KindSection).Return(sections, http.StatusOK, nil),
		f.EXPECT().FetchCollection(gomock.Any(), models.KindPage).Return(pages, http.StatusOK, nil),
	)

	s := NewStore(filepath.Join(t.TempDir(), "hierarchy.json"))
	status, err := s.RefreshAll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, s.Pages, 4)
	assert.Equal(t, []int{0, 1}, s.Notebooks[0].Children)

	reloaded := NewStore(s.Path())
	require.NoError(t, reloaded.Load())
	assert.Len(t, reloaded.Sections, 3)
}

func TestRefreshAllKeepsPreviousOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notebooks, sections, _ := fixture()
	f := mock_hierarchy.NewMockFetcher(ctrl)
	f.EXPECT().FetchCollection(gomock.Any(), models.KindNotebook).Return(notebooks[:1], http.StatusOK, nil)
	f.EXPECT().FetchCollection(gomock.Any(), models.KindSection).Return(sections[:1], http.StatusOK, nil)
	f.EXPECT().FetchCollection(gomock.Any(), models.KindPage).Return(nil, http.StatusServiceUnavailable, nil)

	s := newFixtureStore(t)
	status, err := s.RefreshAll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Len(t, s.Notebooks, 2)
	assert.Len(t, s.Sections, 3)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "nothing is written on a failed refresh")
}

func TestRefreshAllTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := mock_hierarchy.NewMockFetcher(ctrl)
	f.EXPECT().FetchCollection(gomock.Any(), models.KindNotebook).Return(nil, 0, errors.New("connection refused"))

	s := NewStore(filepath.Join(t.TempDir(), "hierarchy.json"))
	_, err := s.RefreshAll(context.Background(), f)
	assert.Error(t, err)
	assert.Empty(t, s.Notebooks)
}

func strPtr(s string) *string { return &s }
