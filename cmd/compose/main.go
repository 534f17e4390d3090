package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/wudi/pdfoverlay/compose"
	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/engine"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/pagemap"
)

type options struct {
	pdfPath      string
	overlaysPath string
	outPath      string
	configPath   string
	strict       bool
	verbose      bool
}

// input is the overlays file: either a bare overlay array or an object with
// a page order.
type input struct {
	Overlays      []overlay.Overlay `json:"overlays"`
	PageOrder     []pagemap.Entry   `json:"pageOrder,omitempty"`
	HasReordering bool              `json:"hasReordering,omitempty"`
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "compose: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "compose: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: compose [flags] <pdf> <overlays.json>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.outPath, "out", "", "Output PDF (default <pdf>-overlaid.pdf)")
	flag.StringVar(&opts.configPath, "config", "", "TOML config file")
	flag.BoolVar(&opts.strict, "strict", false, "Fail on any overlay problem instead of dropping or clamping")
	flag.BoolVar(&opts.verbose, "v", false, "Log every step")
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return options{}, fmt.Errorf("need a pdf and an overlays file")
	}
	opts.pdfPath = flag.Arg(0)
	opts.overlaysPath = flag.Arg(1)
	if opts.outPath == "" {
		ext := filepath.Ext(opts.pdfPath)
		opts.outPath = opts.pdfPath[:len(opts.pdfPath)-len(ext)] + "-overlaid.pdf"
	}
	return opts, nil
}

func readInput(path string) (input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return input{}, fmt.Errorf("read overlays: %w", err)
	}
	var in input
	if err := json.Unmarshal(data, &in.Overlays); err == nil {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return input{}, fmt.Errorf("parse overlays: %w", err)
	}
	return in, nil
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.strict {
		cfg.Strict = true
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	log := observability.NewSlog(cfg.NewLogger(os.Stderr))

	in, err := readInput(opts.overlaysPath)
	if err != nil {
		return err
	}
	if err := cfg.Limits.CheckCompose(len(in.Overlays), len(in.PageOrder)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Limits.ComposeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Limits.ComposeTimeout)
		defer cancel()
	}

	eng := engine.NewPDFCPU(log)
	source := opts.pdfPath
	if in.HasReordering {
		dir, err := os.MkdirTemp(cfg.TempDir, "compose-order-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		if source, err = reorder(ctx, eng, opts.pdfPath, in.PageOrder, dir); err != nil {
			return err
		}
	}

	c := compose.New(eng, cfg.ComposeOptions(log)...)
	res, err := c.Compose(ctx, source, in.Overlays, opts.outPath)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	for _, d := range res.Dropped {
		fmt.Fprintf(os.Stderr, "dropped overlay %d (%s): %v\n", d.Index, d.Kind, d.Reason)
	}
	fmt.Printf("%s: %d overlays applied\n", res.FinalPath, res.Applied)
	return nil
}

// reorder assembles pdfPath in order. Every entry must come from pdfPath.
func reorder(ctx context.Context, eng *engine.PDFCPU, pdfPath string, order []pagemap.Entry, dir string) (string, error) {
	const self = "self"
	groups, err := pagemap.Layout(order, self)
	if err != nil {
		return "", err
	}
	parts := make([]engine.Part, len(groups))
	for i, g := range groups {
		if g.Source != self {
			return "", fmt.Errorf("page source %q: only the input document is available offline", g.Source)
		}
		parts[i] = engine.Part{Path: pdfPath, Pages: g.Pages}
	}
	out := filepath.Join(dir, "ordered.pdf")
	if err := eng.Assemble(ctx, parts, out); err != nil {
		return "", err
	}
	return out, nil
}
