// Package pagestyle samples the resolved styles of a web page and summarises
// the most frequent values per element selector and style property.
package pagestyle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

const (
	// ToolName is the name under which the extractor is offered to agents.
	ToolName = "StyleExtractorTool"
	// ToolDescription tells an agent what the tool returns and expects.
	ToolDescription = `Return JSON representation of the most common CSS style properties for elements on a webpage and their counts from a given URL.
Input should be a single valid url. Example: "https://www.google.com"`
)

// Engine selects how a page is loaded and styled.
type Engine string

const (
	EngineStatic  Engine = "static"
	EngineBrowser Engine = "browser"
)

// Options configures an Extractor. Zero values fall back to defaults.
type Options struct {
	Engine         Engine
	LoadTimeout    time.Duration
	Viewport       Viewport
	MaxStylesheets int
	MaxImages      int
	Concurrency    int
	ChromePath     string
	Client         *http.Client
	Logger         *slog.Logger
}

// DefaultOptions mirrors the zero-value behaviour with every field spelled out.
func DefaultOptions() Options {
	return Options{
		Engine:         EngineStatic,
		LoadTimeout:    DefaultLoadTimeout,
		Viewport:       Viewport{Width: 1024, Height: 768},
		MaxStylesheets: 16,
		MaxImages:      64,
		Concurrency:    6,
	}
}

// Extractor runs the whole pipeline: normalize, load, sample, tally, rank
// and serialize. It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	loader Loader
	closer func()
	logger *slog.Logger
}

// New builds an Extractor for the configured engine.
func New(o Options) *Extractor {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	x := &Extractor{logger: logger}
	switch o.Engine {
	case EngineBrowser:
		b := NewBrowserLoader(BrowserOptions{
			ExecPath:    o.ChromePath,
			LoadTimeout: o.LoadTimeout,
			Viewport:    o.Viewport,
			Logger:      logger,
		})
		x.loader = b
		x.closer = b.Close
	default:
		x.loader = &StaticLoader{
			Fetcher: &Fetcher{Client: o.Client},
			Materializer: &Materializer{
				Client:         o.Client,
				LoadTimeout:    o.LoadTimeout,
				Viewport:       o.Viewport,
				MaxStylesheets: o.MaxStylesheets,
				MaxImages:      o.MaxImages,
				Concurrency:    o.Concurrency,
				Logger:         logger,
			},
		}
	}
	return x
}

// NewWithLoader builds an Extractor around a custom Loader.
func NewWithLoader(l Loader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{loader: l, logger: logger}
}

// Close releases engine resources such as a browser process.
func (x *Extractor) Close() {
	if x.closer != nil {
		x.closer()
	}
}

// Run is the tool entry point. It never fails: any error is reported as
// "Error: <message>".
func (x *Extractor) Run(ctx context.Context, raw string) string {
	out, err := x.Extract(ctx, raw)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

// Extract is Run with the failure kept as a typed *Error. Partial results are
// discarded on failure.
func (x *Extractor) Extract(ctx context.Context, raw string) (out string, err error) {
	start := time.Now()
	target := Normalize(raw)
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("extraction panicked", "url", target, "panic", r, "stack", string(debug.Stack()))
			out, err = "", newError(KindUnclassified, fmt.Errorf("%v", r))
		}
		if err != nil {
			x.logger.Warn("extraction failed", "url", target, "kind", KindOf(err).String(), "err", err)
		}
	}()

	doc, err := x.loader.Load(ctx, target)
	if err != nil {
		return "", err
	}
	samples, err := Sample(doc)
	if err != nil {
		return "", newError(KindUnclassified, err)
	}
	table := NewFrequencyTable()
	for _, s := range samples {
		table.AddSample(s)
	}
	ranked := table.Rank()
	if x.logger.Enabled(ctx, slog.LevelDebug) {
		x.logger.Debug("ranked styles", "url", target, "styles", ranked.Indent())
	}
	out, err = Serialize(ranked)
	if err != nil {
		return "", newError(KindUnclassified, err)
	}
	x.logger.Info("styles extracted", "url", target,
		"samples", len(samples), "distinct", table.Len(), "selectors", len(ranked.Selectors),
		"bytes", len(out), "elapsed", time.Since(start))
	return out, nil
}
