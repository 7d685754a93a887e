package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/takak2166/onenotecli/internal/logger"
)

const closeWindowPage = `<script type="text/javascript">window.close()</script>
`

// DefaultRedirectAddr is where the provider redirects after consent
const DefaultRedirectAddr = "localhost:8085"

// BrowserCodeFlow opens the consent page in the user's browser and waits for
// exactly one redirect on a local address. It is not a server: the first
// connection is answered and then both the connection and the listener close.
type BrowserCodeFlow struct {
	Addr    string
	Timeout time.Duration
	// Open shows the consent URL to the user; browser.OpenURL when nil.
	Open func(url string) error
}

type callbackResult struct {
	query url.Values
	err   error
}

// AcquireCode implements CodeAcquirer
func (b *BrowserCodeFlow) AcquireCode(ctx context.Context, consentURL string) (url.Values, error) {
	addr := b.Addr
	if addr == "" {
		addr = DefaultRedirectAddr
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for redirect on %s: %w", addr, err)
	}
	defer ln.Close()

	results := make(chan callbackResult, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			results <- callbackResult{err: err}
			return
		}
		defer conn.Close()
		query, err := serveCallback(conn)
		results <- callbackResult{query: query, err: err}
	}()

	open := b.Open
	if open == nil {
		open = browser.OpenURL
	}
	logger.Info("Waiting for authorization redirect", map[string]interface{}{
		"addr":    addr,
		"timeout": timeout.String(),
	})
	if err := open(consentURL); err != nil {
		logger.Error("Failed to open browser, open the consent URL manually", err, map[string]interface{}{
			"url": consentURL,
		})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("failed to read redirect: %w", r.err)
		}
		return r.query, nil
	case <-timer.C:
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serveCallback reads one HTTP request from conn and answers it with a page
// that closes the browser tab.
func serveCallback(conn net.Conn) (url.Values, error) {
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		return nil, err
	}

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return nil, err
	}
	defer req.Body.Close()

	resp := &http.Response{
		StatusCode:    http.StatusOK,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/html"}},
		ContentLength: int64(len(closeWindowPage)),
		Close:         true,
		Body:          io.NopCloser(strings.NewReader(closeWindowPage)),
	}
	if err := resp.Write(conn); err != nil {
		return nil, err
	}

	if req.Method != http.MethodGet {
		return url.Values{}, nil
	}
	return req.URL.Query(), nil
}
