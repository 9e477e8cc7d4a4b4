package pagestyle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const maxStylesheetBytes = 4 << 20

// styleSource is one <style> or <link rel=stylesheet> in document order.
type styleSource struct {
	inline string
	href   string
}

type loadedResources struct {
	sheets [][]cssRule
	images map[*html.Node]imageSize
}

func collectStyleSources(doc *html.Node, vp Viewport) []styleSource {
	var out []styleSource
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "style":
				if mediaRuleActive(getAttr(n, "media"), vp) && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					out = append(out, styleSource{inline: n.FirstChild.Data})
				}
			case "link":
				if isStylesheetLink(n) && mediaRuleActive(getAttr(n, "media"), vp) {
					out = append(out, styleSource{href: strings.TrimSpace(getAttr(n, "href"))})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return out
}

func isStylesheetLink(n *html.Node) bool {
	rel := strings.Fields(strings.ToLower(getAttr(n, "rel")))
	isSheet := false
	for _, r := range rel {
		switch r {
		case "stylesheet":
			isSheet = true
		case "alternate":
			return false
		}
	}
	if !isSheet {
		return false
	}
	typ := strings.ToLower(strings.TrimSpace(getAttr(n, "type")))
	if typ != "" && typ != "text/css" {
		return false
	}
	return strings.TrimSpace(getAttr(n, "href")) != ""
}

func collectImages(doc *html.Node, limit int) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if limit > 0 && len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "img") && strings.TrimSpace(getAttr(n, "src")) != "" {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return out
}

// loadSubresources fetches stylesheets (with their imports) and images
// concurrently. Individual failures are logged and skipped; it returns once
// every load has settled.
func (m *Materializer) loadSubresources(ctx context.Context, doc *html.Node, base string) *loadedResources {
	logger := m.logger()
	sources := collectStyleSources(doc, m.Viewport)
	imgs := collectImages(doc, m.maxImages())

	res := &loadedResources{
		sheets: make([][]cssRule, len(sources)),
		images: make(map[*html.Node]imageSize, len(imgs)),
	}
	budget := &atomic.Int32{}
	budget.Store(int32(m.maxStylesheets()))
	fetch := func(ctx context.Context, absURL string) ([]byte, error) {
		return fetchText(ctx, m.client(), absURL, "text/css,*/*;q=0.1")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency())

	for i, src := range sources {
		g.Go(func() error {
			pc := &cssParseContext{
				ctx:      gctx,
				baseURL:  base,
				viewport: m.Viewport,
				fetch:    fetch,
				visited:  map[string]struct{}{},
				budget:   budget,
				logger:   logger,
			}
			if src.href == "" {
				res.sheets[i] = parseCSSText(src.inline, pc)
				return nil
			}
			abs := resolveAbsURL(base, src.href)
			if abs == "" || !pc.takeBudget() {
				return nil
			}
			pc.visited[abs] = struct{}{}
			b, err := fetch(gctx, abs)
			if err != nil {
				logger.Warn("stylesheet load failed", "url", abs, "err", err)
				return nil
			}
			res.sheets[i] = parseCSSText(string(b), pc.child(abs))
			return nil
		})
	}

	var mu sync.Mutex
	for _, n := range imgs {
		g.Go(func() error {
			src := strings.TrimSpace(getAttr(n, "src"))
			size, err := loadImageSize(gctx, m.client(), base, src)
			if err != nil {
				logger.Debug("image load failed", "src", src, "err", err)
				return nil
			}
			mu.Lock()
			res.images[n] = size
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return res
}

func getResource(ctx context.Context, client *http.Client, absURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", absURL, resp.StatusCode)
	}
	return resp, nil
}

func fetchText(ctx context.Context, client *http.Client, absURL, accept string) ([]byte, error) {
	resp, err := getResource(ctx, client, absURL, accept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStylesheetBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", absURL, err)
	}
	return decodeCSS(body, resp.Header.Get("Content-Type")), nil
}

func resolveAbsURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	hu, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}
