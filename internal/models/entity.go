package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Kind is the level of an entity in the notebook hierarchy
type Kind string

const (
	KindNotebook Kind = "notebook"
	KindSection  Kind = "section"
	KindPage     Kind = "page"
)

// NoParent marks an entity that is not linked to a parent
const NoParent = -1

// Entity is a notebook, section or page.
//
// Children and Parent are derived links owned by the hierarchy store: Children
// holds indexes into the next level's collection and Parent an index into the
// previous level's collection. They are rebuilt from ParentID and never
// persisted as the authority.
type Entity struct {
	Kind             Kind
	ID               string
	Name             string
	ParentID         string
	ParentName       string
	CreatedTime      time.Time
	LastModifiedTime time.Time

	Children []int
	Parent   int
}

// NewEntity returns an unlinked entity
func NewEntity(kind Kind, id, name, parentID, parentName string, created, modified time.Time) Entity {
	return Entity{
		Kind:             kind,
		ID:               id,
		Name:             name,
		ParentID:         parentID,
		ParentName:       parentName,
		CreatedTime:      created,
		LastModifiedTime: modified,
		Parent:           NoParent,
	}
}

// Linked reports whether the entity was attached to a parent by the last tree build
func (e *Entity) Linked() bool {
	return e.Parent != NoParent
}

func (e Entity) String() string {
	return e.Name
}

// ParseTime parses an ISO-8601 timestamp. Values without a zone are read as UTC.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}

// entityRecord is the persisted form of an Entity
type entityRecord struct {
	Type         Kind     `json:"type"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ParentID     *string  `json:"parent_id"`
	ParentName   *string  `json:"parent_name"`
	CreatedTime  string   `json:"created_time"`
	LastModTime  string   `json:"lastmod_time"`
	ParentEntity *string  `json:"parent_entity"`
	Children     []string `json:"children"`
}

// MarshalJSON writes the flat persisted record; children are always empty
func (e Entity) MarshalJSON() ([]byte, error) {
	rec := entityRecord{
		Type:        e.Kind,
		ID:          e.ID,
		Name:        e.Name,
		ParentID:    nullable(e.ParentID),
		ParentName:  nullable(e.ParentName),
		CreatedTime: e.CreatedTime.Format(time.RFC3339Nano),
		LastModTime: e.LastModifiedTime.Format(time.RFC3339Nano),
		Children:    []string{},
	}
	if e.Linked() {
		rec.ParentEntity = nullable(e.ParentID)
	}
	return json.Marshal(rec)
}

// UnmarshalJSON reads a persisted record into an unlinked entity
func (e *Entity) UnmarshalJSON(data []byte) error {
	var rec entityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("entity record without id")
	}

	created, err := ParseTime(rec.CreatedTime)
	if err != nil {
		return err
	}
	modified, err := ParseTime(rec.LastModTime)
	if err != nil {
		return err
	}

	*e = NewEntity(rec.Type, rec.ID, rec.Name, deref(rec.ParentID), deref(rec.ParentName), created, modified)
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
