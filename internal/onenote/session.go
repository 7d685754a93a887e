package onenote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/takak2166/onenotecli/internal/hierarchy"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/models"
)

// Session is the state of one CLI invocation: the API client and the cached
// hierarchy it reads from and writes to.
type Session struct {
	Client *Client
	Store  *hierarchy.Store
}

// NewSession creates a new session
func NewSession(client *Client, store *hierarchy.Store) *Session {
	return &Session{Client: client, Store: store}
}

// Hierarchy makes the notebook hierarchy available. The cache is used unless
// update is set or the cache cannot be loaded, in which case everything is
// fetched again.
func (s *Session) Hierarchy(ctx context.Context, update bool) error {
	if !update {
		err := s.Store.Load()
		if err == nil {
			return nil
		}
		if !errors.Is(err, hierarchy.ErrNoCache) {
			return err
		}
		logger.Info("No usable hierarchy cache, fetching from server", map[string]interface{}{
			"path": s.Store.Path(),
		})
	}

	status, err := s.Store.RefreshAll(ctx, s.Client)
	if err != nil {
		return fmt.Errorf("failed to refresh hierarchy: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to refresh hierarchy: %w", &StatusError{Code: status})
	}
	return nil
}

// PageContent returns the content of the first page named name
func (s *Session) PageContent(ctx context.Context, name string, format Format) (string, error) {
	pages := s.Store.Find(models.KindPage, hierarchy.FieldName, name)
	if len(pages) == 0 {
		return "", fmt.Errorf("page '%s': %w", name, ErrNotFound)
	}
	return s.Client.FetchPageContent(ctx, pages[0], format)
}

// CreatePage posts a page with an HTML body into the section named
// sectionName and returns the response status. A name without a match fails
// with ErrNotFound before any request is made; with several matches the
// first one is used.
func (s *Session) CreatePage(ctx context.Context, title, sectionName, body string) (int, error) {
	sections := s.Store.Find(models.KindSection, hierarchy.FieldName, sectionName)
	if len(sections) == 0 {
		logger.Info("Section not found", map[string]interface{}{
			"section": sectionName,
		})
		return 0, fmt.Errorf("section '%s': %w", sectionName, ErrNotFound)
	}
	if len(sections) > 1 {
		logger.Warn("Several sections share this name, using the first", map[string]interface{}{
			"section": sectionName,
			"matches": len(sections),
			"id":      sections[0].ID,
		})
	}
	return s.Client.PostPage(ctx, sections[0], title, body)
}
