package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"stylextract/pagestyle"
)

type recordingRunner struct {
	mu   sync.Mutex
	seen []string
	out  string
}

func (r *recordingRunner) Run(_ context.Context, raw string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, raw)
	return r.out
}

func newTestServer(runner Runner) *Server {
	return New(runner, Config{Logger: slog.New(slog.DiscardHandler)})
}

func TestPingAndIndex(t *testing.T) {
	t.Parallel()
	s := newTestServer(&recordingRunner{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong\n", rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `action="/extract"`)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestExtractInputs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		req    func() *http.Request
		expect string
	}{
		{"query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/extract?url="+url.QueryEscape("https://example.com/a?b=c"), nil)
		}, "https://example.com/a?b=c"},
		{"raw body", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`"https://example.com"`+"\n"))
		}, `"https://example.com"`},
		{"form body", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("url="+url.QueryEscape("https://example.com/f")))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}, "https://example.com/f"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			runner := &recordingRunner{out: `{"a":{"color":[["red"]]}}`}
			s := newTestServer(runner)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, tc.req())

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, runner.out, rec.Body.String())
			require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			require.Equal(t, []string{tc.expect}, runner.seen)
		})
	}
}

func TestExtractMissingURL(t *testing.T) {
	t.Parallel()
	runner := &recordingRunner{}
	s := newTestServer(runner)

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/extract", nil),
		httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("   ")),
	} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	require.Empty(t, runner.seen)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/extract?url=x", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	s := newTestServer(&recordingRunner{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, "trace-42", rec.Header().Get(requestIDHeader))
}

func TestExtractEndToEnd(t *testing.T) {
	t.Parallel()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<style>h1 { color: rgb(10,20,30) }</style><h1>x</h1><h1>y</h1>`)
	}))
	defer origin.Close()

	o := pagestyle.DefaultOptions()
	o.Client = origin.Client()
	o.Logger = slog.New(slog.DiscardHandler)
	x := pagestyle.New(o)
	defer x.Close()
	srv := httptest.NewServer(newTestServer(x))
	defer srv.Close()

	get := func(target string) (int, string) {
		resp, err := http.Get(srv.URL + "/extract?url=" + url.QueryEscape(target))
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(b)
	}

	code, body := get(origin.URL + "/")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, `{"h1":{"color":[["rgb(10,20,30)"]]}}`, body)

	code, body = get(origin.URL + "/gone")
	require.Equal(t, http.StatusOK, code, "tool failures are reported in the body")
	require.Equal(t, "Error: Request failed with status code 404", body)
}
