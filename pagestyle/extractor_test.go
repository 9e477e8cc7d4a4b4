package pagestyle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAMAAAACCAIAAAASFvFNAAAAEElEQVR4nGP4z8AAQQxwFgBB0gX7h/C5SAAAAABJRU5ErkJggg=="

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		})
	}
	css := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/css")
			fmt.Fprint(w, body)
		})
	}

	page("/buttons", `<html><head><style>button { color: rgb(255,0,0) }</style></head>
		<body><button>a</button><button>b</button><button>c</button></body></html>`)
	page("/ranked", `<style>p { color: rgb(0,0,0) } p.alt { color: rgb(9,9,9) }</style>
		<p>a</p><p class="alt">b</p><p class="alt">c</p>`)
	page("/brand", `<style>:root { --brand: rgb(1,2,3) } a { color: var(--brand) }</style><a href="/">x</a>`)
	page("/system", `<style>button { background-color: ButtonFace }</style><button>x</button>`)
	page("/noise", `<style>div { color: rgb(0,0,0); background-image: url(data:image/png;base64,AAAA) }</style><div></div>`)
	page("/empty", `<html><body>plain text</body></html>`)
	page("/linked", `<link rel="stylesheet" href="/main.css"><a href="/">x</a>`)
	page("/image", `<img src="data:image/png;base64,`+tinyPNG+`">`)
	page("/slow", `<link rel="stylesheet" href="/slow.css"><p>x</p>`)
	css("/main.css", `@import url("/base.css"); a { color: rgb(0,0,255) }`)
	css("/base.css", `a { font-size: 14px }`)
	page("/unicode", `<link rel="stylesheet" href="/unicode.css"><p>x</p>`)
	css("/unicode.css", "/* "+strings.Repeat("-", 1100)+" */\n"+`p { font-family: "Ünïcødé Sans" }`)
	mux.HandleFunc("/slow.css", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestExtractor(srv *httptest.Server, timeout time.Duration) *Extractor {
	o := DefaultOptions()
	o.Client = srv.Client()
	o.LoadTimeout = timeout
	o.Logger = slog.New(slog.DiscardHandler)
	return New(o)
}

func TestExtractorRun(t *testing.T) {
	t.Parallel()
	srv := newSite(t)
	x := newTestExtractor(srv, 5*time.Second)
	defer x.Close()

	tests := []struct {
		path     string
		expected string
	}{
		{"/buttons", `{"button":{"color":[["rgb(255,0,0)"]]}}`},
		{"/ranked", `{"p":{"color":[["rgb(9,9,9)"],["rgb(0,0,0)"]]}}`},
		{"/brand", `{"a":{"color":[["rgb(1,2,3)"]]}}`},
		{"/system", `{"button":{"background-color":[["rgb(236,233,216)"]]}}`},
		{"/noise", `{"div":{"color":[["rgb(0,0,0)"]]}}`},
		{"/empty", NoStylesMessage},
		{"/linked", `{"a":{"color":[["rgb(0,0,255)"]],"font-size":[["14px"]]}}`},
		{"/image", `{"img":{"width":[["3px"]],"height":[["2px"]]}}`},
		{"/unicode", `{"p":{"font-family":[["\"Ünïcødé Sans\""]]}}`},
		{"/missing", "Error: Request failed with status code 404"},
	}
	for _, tc := range tests {
		t.Run(strings.TrimPrefix(tc.path, "/"), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, x.Run(context.Background(), srv.URL+tc.path))
		})
	}
}

func TestExtractorQuotedURL(t *testing.T) {
	t.Parallel()
	srv := newSite(t)
	x := newTestExtractor(srv, 5*time.Second)
	got := x.Run(context.Background(), `"`+srv.URL+`/buttons"`)
	require.Equal(t, `{"button":{"color":[["rgb(255,0,0)"]]}}`, got)
}

func TestSampleCountsEveryElement(t *testing.T) {
	t.Parallel()
	srv := newSite(t)
	loader := &StaticLoader{
		Fetcher:      &Fetcher{Client: srv.Client()},
		Materializer: &Materializer{Client: srv.Client(), Logger: slog.New(slog.DiscardHandler)},
	}
	doc, err := loader.Load(context.Background(), srv.URL+"/buttons")
	require.NoError(t, err)
	samples, err := Sample(doc)
	require.NoError(t, err)

	table := NewFrequencyTable()
	for _, s := range samples {
		table.AddSample(s)
	}
	require.Equal(t, 3, table.Count("button", "color", "rgb(255,0,0)"))
	require.Equal(t, 1, table.Len())
}

func TestExtractorTimeout(t *testing.T) {
	t.Parallel()
	srv := newSite(t)
	x := newTestExtractor(srv, 100*time.Millisecond)

	start := time.Now()
	out, err := x.Extract(context.Background(), srv.URL+"/slow")
	require.Error(t, err)
	require.Empty(t, out)
	require.True(t, IsKind(err, KindTimeout))
	require.Less(t, time.Since(start), 3*time.Second)
	require.Equal(t, "Error: Timeout", x.Run(context.Background(), srv.URL+"/slow"))
}

func TestExtractorFetchErrors(t *testing.T) {
	t.Parallel()
	srv := newSite(t)
	x := newTestExtractor(srv, time.Second)

	_, err := x.Extract(context.Background(), srv.URL+"/missing")
	require.True(t, IsKind(err, KindFetch))

	_, err = x.Extract(context.Background(), "not a url\x7f")
	require.True(t, IsKind(err, KindFetch))
	require.True(t, strings.HasPrefix(x.Run(context.Background(), ""), "Error: "))
}

type loaderFunc func(ctx context.Context, target string) (Document, error)

func (f loaderFunc) Load(ctx context.Context, target string) (Document, error) { return f(ctx, target) }

func TestExtractorLoaderFailures(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)

	failing := NewWithLoader(loaderFunc(func(context.Context, string) (Document, error) {
		return nil, errors.New("engine unavailable")
	}), logger)
	require.Equal(t, "Error: engine unavailable", failing.Run(context.Background(), "http://example.test"))

	panicking := NewWithLoader(loaderFunc(func(context.Context, string) (Document, error) {
		panic("boom")
	}), logger)
	out, err := panicking.Extract(context.Background(), "http://example.test")
	require.Empty(t, out)
	require.Equal(t, KindUnclassified, KindOf(err))
	require.Equal(t, "Error: boom", panicking.Run(context.Background(), "http://example.test"))
}

type snapshot map[string][]ComputedStyle

func (s snapshot) Styles(sel string) ([]ComputedStyle, error) { return s[sel], nil }

func TestExtractorTruncatesOutput(t *testing.T) {
	t.Parallel()
	var divs []ComputedStyle
	for i := 0; i < 1000; i++ {
		divs = append(divs, ComputedStyle{"margin": fmt.Sprintf("%dpx", i)})
	}
	x := NewWithLoader(loaderFunc(func(context.Context, string) (Document, error) {
		return snapshot{"div": divs}, nil
	}), slog.New(slog.DiscardHandler))

	out := x.Run(context.Background(), "http://example.test")
	require.Len(t, []rune(out), MaxOutputChars)
	require.True(t, strings.HasPrefix(out, `{"div":{"margin":[["0px"],["1px"]`))
}
