package auth

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// tokenTransport adds form fields to token endpoint requests and remembers
// the status of the last response.
type tokenTransport struct {
	base   http.RoundTripper
	extra  url.Values
	status int
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req
	if len(t.extra) > 0 && req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, err
		}
		for k, v := range t.extra {
			form[k] = v
		}
		encoded := form.Encode()

		out = req.Clone(req.Context())
		out.Body = io.NopCloser(strings.NewReader(encoded))
		out.ContentLength = int64(len(encoded))
		out.GetBody = nil
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	return resp, nil
}
