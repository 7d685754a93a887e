// Package onenote talks to the OneNote REST API and ties the API client, the
// credential manager and the hierarchy cache together in a Session.
package onenote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/markup"
	"github.com/takak2166/onenotecli/internal/models"
)

// DefaultBaseURL is the resource API root
const DefaultBaseURL = "https://www.onenote.com/api/v1.0/me/notes/"

const pageTemplate = `<!DOCTYPE html>
<html>
  <head>
    <title>%s</title>
    <meta name="created" content="%s" />
  </head>
  <body>%s</body>
</html>
`

// Format selects how page content is rendered
type Format int

const (
	FormatMarkdown Format = iota
	FormatHTML
)

// Response is the outcome of one API request
type Response struct {
	StatusCode int
	Text       string
	// Data is the decoded JSON body, nil when the body is not JSON
	Data interface{}
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal([]byte(r.Text), v)
}

// Client issues authenticated requests against the resource API
type Client struct {
	tokens     TokenProvider
	httpClient *http.Client
	baseURL    string
	markup     *markup.Converter
	now        func() time.Time
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL overrides the resource API root
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for API requests
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithClock sets the clock used for page creation timestamps
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new API client
func NewClient(tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		tokens:     tokens,
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		markup:     markup.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c
}

// Request sends one authenticated request. A 401 triggers exactly one token
// recovery and one retry; when recovery fails the 401 response is returned.
// A nil body sends a GET-style request without a content type.
func (c *Client) Request(ctx context.Context, method, url string, body []byte) (*Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	resp, err := c.do(ctx, method, url, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	token, err = c.tokens.HandleUnauthorized(ctx)
	if err != nil {
		logger.Error("Failed to recover from unauthorized response", err, map[string]interface{}{
			"url": url,
		})
		return resp, nil
	}
	return c.do(ctx, method, url, body, token)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, token string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/xhtml+xml")
	}

	logger.Debug("Sending API request", map[string]interface{}{
		"method": method,
		"url":    url,
	})
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp := &Response{StatusCode: res.StatusCode, Text: string(raw)}
	var data interface{}
	if json.Unmarshal(raw, &data) == nil {
		resp.Data = data
	}
	logger.Debug("Received API response", map[string]interface{}{
		"url":    url,
		"status": res.StatusCode,
	})
	return resp, nil
}

type collectionPage struct {
	Value    []apiItem `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

type apiParent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiItem struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Title            string     `json:"title"`
	CreatedTime      string     `json:"createdTime"`
	LastModifiedTime string     `json:"lastModifiedTime"`
	ParentNotebook   *apiParent `json:"parentNotebook"`
	ParentSection    *apiParent `json:"parentSection"`
}

func (it apiItem) entity(kind models.Kind) (models.Entity, error) {
	created, err := models.ParseTime(it.CreatedTime)
	if err != nil {
		return models.Entity{}, err
	}
	modified, err := models.ParseTime(it.LastModifiedTime)
	if err != nil {
		return models.Entity{}, err
	}

	name := it.Name
	var parent *apiParent
	switch kind {
	case models.KindSection:
		parent = it.ParentNotebook
	case models.KindPage:
		name = it.Title
		parent = it.ParentSection
	}
	if parent == nil {
		parent = &apiParent{}
	}
	return models.NewEntity(kind, it.ID, name, parent.ID, parent.Name, created, modified), nil
}

func collectionPath(kind models.Kind) string {
	return string(kind) + "s"
}

// FetchCollection retrieves every entity of kind, following the pagination
// links. It stops at the first non-200 page and returns that status with the
// entities read so far.
func (c *Client) FetchCollection(ctx context.Context, kind models.Kind) ([]models.Entity, int, error) {
	logger.Info("Fetching collection", map[string]interface{}{
		"kind": string(kind),
	})

	var entities []models.Entity
	seen := make(map[string]bool)
	url := c.baseURL + collectionPath(kind)
	for url != "" {
		seen[url] = true
		resp, err := c.Request(ctx, http.MethodGet, url, nil)
		if err != nil {
			return entities, 0, err
		}
		if resp.StatusCode != http.StatusOK {
			logger.Warn("Collection fetch stopped", map[string]interface{}{
				"kind":   string(kind),
				"status": resp.StatusCode,
			})
			return entities, resp.StatusCode, nil
		}

		var page collectionPage
		if err := resp.Decode(&page); err != nil {
			return entities, resp.StatusCode, fmt.Errorf("failed to decode %s collection: %w", kind, err)
		}
		for _, item := range page.Value {
			e, err := item.entity(kind)
			if err != nil {
				return entities, resp.StatusCode, fmt.Errorf("failed to read %s %s: %w", kind, item.ID, err)
			}
			entities = append(entities, e)
		}
		if seen[page.NextLink] {
			logger.Warn("Collection links back to a served page", map[string]interface{}{
				"kind": string(kind),
				"link": page.NextLink,
			})
			return entities, resp.StatusCode, fmt.Errorf("%w: %s collection at %s", ErrPaginationLoop, kind, page.NextLink)
		}
		url = page.NextLink
	}

	logger.Debug("Fetched collection", map[string]interface{}{
		"kind":  string(kind),
		"count": len(entities),
	})
	return entities, http.StatusOK, nil
}

// FetchPageContent returns the content of page rendered in format
func (c *Client) FetchPageContent(ctx context.Context, page models.Entity, format Format) (string, error) {
	resp, err := c.Request(ctx, http.MethodGet, c.baseURL+"pages/"+page.ID+"/content", nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page content: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode}
	}

	if format == FormatHTML {
		return resp.Text, nil
	}
	return c.markup.ToMarkdown(resp.Text)
}

// PostPage creates a page in section and returns the response status
func (c *Client) PostPage(ctx context.Context, section models.Entity, title, body string) (int, error) {
	doc := fmt.Sprintf(pageTemplate, html.EscapeString(title), c.now().Format(time.RFC3339), body)

	resp, err := c.Request(ctx, http.MethodPost, c.baseURL+"sections/"+section.ID+"/pages", []byte(doc))
	if err != nil {
		return 0, fmt.Errorf("failed to post page: %w", err)
	}

	logger.Info("Posted page", map[string]interface{}{
		"title":   title,
		"section": section.Name,
		"status":  resp.StatusCode,
	})
	return resp.StatusCode, nil
}
