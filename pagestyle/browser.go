package pagestyle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserLoader resolves styles in a headless Chrome with page scripts
// disabled. Each Load opens its own tab on a shared browser process.
type BrowserLoader struct {
	allocator   context.Context
	cancel      context.CancelFunc
	loadTimeout time.Duration
	viewport    Viewport
	logger      *slog.Logger
}

// BrowserOptions configures NewBrowserLoader.
type BrowserOptions struct {
	ExecPath    string
	LoadTimeout time.Duration
	Viewport    Viewport
	Logger      *slog.Logger
}

func NewBrowserLoader(o BrowserOptions) *BrowserLoader {
	vp := o.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = Viewport{Width: 1024, Height: 768}
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.WindowSize(vp.Width, vp.Height),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	timeout := o.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserLoader{
		allocator:   allocCtx,
		cancel:      cancel,
		loadTimeout: timeout,
		viewport:    vp,
		logger:      logger,
	}
}

// Close shuts the browser down.
func (b *BrowserLoader) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// sampleScript collects, per selector, each matching element's computed
// values for the given properties plus every custom property it exposes.
const sampleScript = `(() => {
  const selectors = %s, props = %s, out = {};
  for (const sel of selectors) {
    out[sel] = Array.from(document.querySelectorAll(sel)).map((el) => {
      const cs = getComputedStyle(el), st = {};
      for (const p of props) {
        const v = cs.getPropertyValue(p);
        if (v) st[p] = v.trim();
      }
      for (let i = 0; i < cs.length; i++) {
        const k = cs[i];
        if (k.startsWith("--")) st[k] = cs.getPropertyValue(k).trim();
      }
      return st;
    });
  }
  return out;
})()`

func buildSampleScript() (string, error) {
	sels, err := json.Marshal(Selectors)
	if err != nil {
		return "", err
	}
	props, err := json.Marshal(RelevantProperties)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(sampleScript, sels, props), nil
}

// Load navigates to target, racing the load event against the load timer,
// then snapshots the computed styles of every sampled selector.
func (b *BrowserLoader) Load(ctx context.Context, target string) (Document, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fetchErrorf("empty target url")
	}
	script, err := buildSampleScript()
	if err != nil {
		return nil, newError(KindUnclassified, err)
	}

	tabCtx, closeTab := chromedp.NewContext(b.allocator)
	defer closeTab()
	taskCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	navigated := make(chan error, 1)
	go func() {
		if err := chromedp.Run(taskCtx, emulation.SetScriptExecutionDisabled(true)); err != nil {
			navigated <- err
			return
		}
		resp, err := chromedp.RunResponse(taskCtx, chromedp.Navigate(target))
		if err != nil {
			navigated <- err
			return
		}
		navigated <- checkNavigationStatus(resp)
	}()

	timer := time.NewTimer(b.loadTimeout)
	defer timer.Stop()
	select {
	case err := <-navigated:
		if err != nil {
			if IsKind(err, KindFetch) {
				return nil, err
			}
			return nil, newError(KindFetch, err)
		}
	case <-timer.C:
		return nil, timeoutError()
	case <-ctx.Done():
		return nil, newError(KindUnclassified, ctx.Err())
	}

	var styles map[string][]ComputedStyle
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &styles)); err != nil {
		return nil, newError(KindUnclassified, fmt.Errorf("evaluate computed styles: %w", err))
	}
	b.logger.Debug("browser page sampled", "url", target, "selectors", len(styles))
	return browserDocument(styles), nil
}

// checkNavigationStatus fails a navigation whose main document answered
// outside 2xx. Responses without a status, such as data: URLs, pass.
func checkNavigationStatus(resp *network.Response) error {
	if resp == nil || resp.Status == 0 {
		return nil
	}
	if resp.Status < 200 || resp.Status > 299 {
		return fetchErrorf("Request failed with status code %d", resp.Status)
	}
	return nil
}

// browserDocument is a snapshot taken inside the browser.
type browserDocument map[string][]ComputedStyle

func (d browserDocument) Styles(selector string) ([]ComputedStyle, error) {
	return d[selector], nil
}
