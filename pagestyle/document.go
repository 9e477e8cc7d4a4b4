package pagestyle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultLoadTimeout bounds the wait for the page load signal.
const DefaultLoadTimeout = 10 * time.Second

// Document is a loaded page whose elements can be queried for their
// resolved style.
type Document interface {
	// Styles returns the resolved style of every element matching selector,
	// in document order.
	Styles(selector string) ([]ComputedStyle, error)
}

// Loader turns a URL into a Document ready for sampling.
type Loader interface {
	Load(ctx context.Context, target string) (Document, error)
}

// Materializer parses markup into a Document and waits, bounded, for its
// stylesheets and images to load. Page scripts are never run.
type Materializer struct {
	Client         *http.Client
	LoadTimeout    time.Duration
	Viewport       Viewport
	MaxStylesheets int
	MaxImages      int
	Concurrency    int
	Logger         *slog.Logger
}

func (m *Materializer) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return http.DefaultClient
}

func (m *Materializer) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Materializer) loadTimeout() time.Duration {
	if m.LoadTimeout > 0 {
		return m.LoadTimeout
	}
	return DefaultLoadTimeout
}

func (m *Materializer) maxStylesheets() int {
	if m.MaxStylesheets > 0 {
		return m.MaxStylesheets
	}
	return 16
}

func (m *Materializer) maxImages() int {
	if m.MaxImages > 0 {
		return m.MaxImages
	}
	return 64
}

func (m *Materializer) concurrency() int {
	if m.Concurrency > 0 {
		return m.Concurrency
	}
	return 6
}

// Materialize parses markup scoped to baseURL and races subresource loading
// against the load timer. If the timer fires first the call fails with a
// KindTimeout error and the pending loads are cancelled.
func (m *Materializer) Materialize(ctx context.Context, markup []byte, baseURL string) (Document, error) {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse %s: %w", baseURL, err))
	}
	base := findBaseURL(doc, baseURL)

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loaded := make(chan *loadedResources, 1)
	go func() {
		loaded <- m.loadSubresources(loadCtx, doc, base)
	}()

	timer := time.NewTimer(m.loadTimeout())
	defer timer.Stop()

	var res *loadedResources
	select {
	case res = <-loaded:
	case <-timer.C:
		return nil, timeoutError()
	case <-ctx.Done():
		return nil, newError(KindUnclassified, ctx.Err())
	}

	ss := &Stylesheet{}
	for _, rules := range res.sheets {
		ss.append(rules)
	}
	m.logger().Debug("page loaded", "url", base, "rules", ss.Len(), "images", len(res.images))
	return &staticDocument{
		root:     doc,
		resolver: newStyleResolver(ss, imageHints(res.images, doc)),
	}, nil
}

type staticDocument struct {
	root     *html.Node
	resolver *styleResolver
}

func (d *staticDocument) Styles(selector string) ([]ComputedStyle, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	nodes := cascadia.QueryAll(d.root, sel)
	out := make([]ComputedStyle, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.resolver.computed(n))
	}
	return out, nil
}

// findBaseURL honours the first <base href> in the document head.
func findBaseURL(doc *html.Node, cur string) string {
	var base *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if base != nil {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "base") && getAttr(n, "href") != "" {
			base = n
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "body") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if base == nil {
		return cur
	}
	bu, err := url.Parse(cur)
	if err != nil {
		return cur
	}
	hu, err := url.Parse(strings.TrimSpace(getAttr(base, "href")))
	if err != nil {
		return cur
	}
	return bu.ResolveReference(hu).String()
}

// StaticLoader fetches the page over HTTP and materializes it in-process.
type StaticLoader struct {
	Fetcher      *Fetcher
	Materializer *Materializer
}

func (l *StaticLoader) Load(ctx context.Context, target string) (Document, error) {
	mk, err := l.Fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	return l.Materializer.Materialize(ctx, mk.Body, mk.URL)
}
