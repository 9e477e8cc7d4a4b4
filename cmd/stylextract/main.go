// Command stylextract prints the most common styles of one page.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stylextract/internal/config"
	"stylextract/pagestyle"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	engine := flag.String("engine", "", "page engine: static or browser")
	timeout := flag.String("timeout", "", "load timeout, e.g. 10s")
	chrome := flag.String("chrome", "", "Chrome binary for the browser engine")
	level := flag.String("log-level", "", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Extractor.Engine, *engine)
	override(&cfg.Extractor.LoadTimeout, *timeout)
	override(&cfg.Extractor.ChromePath, *chrome)
	override(&cfg.Log.Level, *level)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stderr)
	x := pagestyle.New(cfg.ExtractorOptions(logger))
	defer x.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Println(x.Run(ctx, flag.Arg(0)))
}
