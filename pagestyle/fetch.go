package pagestyle

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// Markup is a fetched page body decoded to UTF-8.
type Markup struct {
	URL         string
	ContentType string
	Body        []byte
}

// Fetcher performs the page GET. It sends no custom headers and sets no
// timeout of its own; the caller's context bounds the request.
type Fetcher struct {
	Client *http.Client
}

func (f *Fetcher) client() *http.Client {
	if f != nil && f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Fetch downloads target. Transport failures, malformed URLs and non-2xx
// responses are reported as KindFetch errors.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Markup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, newError(KindFetch, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, newError(KindFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fetchErrorf("Request failed with status code %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindFetch, err)
	}
	ct := resp.Header.Get("Content-Type")
	return &Markup{URL: target, ContentType: ct, Body: decodeUTF8(raw, ct)}, nil
}

// decodeUTF8 transcodes body using the charset from the header, a BOM or a
// <meta> declaration. Undecodable input is returned unchanged.
func decodeUTF8(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// decodeCSS transcodes a stylesheet using, in order, a byte order mark, the
// header charset or a leading @charset rule. Anything else is taken as UTF-8.
func decodeCSS(body []byte, contentType string) []byte {
	switch {
	case bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}):
		return body[3:]
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		return transcode(body[2:], "utf-16be")
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		return transcode(body[2:], "utf-16le")
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		return transcode(body, params["charset"])
	}
	const rule = `@charset "`
	if bytes.HasPrefix(body, []byte(rule)) {
		rest := body[len(rule):]
		if end := bytes.IndexByte(rest, '"'); end > 0 {
			return transcode(body, string(rest[:end]))
		}
	}
	return body
}

// transcode decodes body from the named charset. Unknown labels and
// undecodable input leave body unchanged.
func transcode(body []byte, label string) []byte {
	enc, name := charset.Lookup(strings.TrimSpace(label))
	if enc == nil || name == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}
