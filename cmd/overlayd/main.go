package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/engine"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/server"
)

type options struct {
	configPath string
	listen     string
	dataDir    string
	mdns       bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "overlayd: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "overlayd: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: overlayd [flags]\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.configPath, "config", "", "TOML config file")
	flag.StringVar(&opts.listen, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&opts.dataDir, "data", "", "Directory for uploaded documents (overrides config)")
	flag.BoolVar(&opts.mdns, "mdns", false, "Advertise the service over mDNS")
	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		return options{}, fmt.Errorf("unexpected arguments %v", flag.Args())
	}
	return opts, nil
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.mdns {
		cfg.MDNS.Enabled = true
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.WorkDir(), "pdfoverlay")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := observability.NewSlog(cfg.NewLogger(os.Stderr))
	srv, err := server.New(engine.NewPDFCPU(log), cfg.DataDir,
		server.WithLogger(log),
		server.WithLimits(cfg.Limits),
		server.WithTempDir(cfg.TempDir),
		server.WithComposeOptions(cfg.ComposeOptions(log)...),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warn("remove documents", observability.Error("error", err))
		}
	}()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if cfg.MDNS.Enabled {
		adv, err := server.Advertise(cfg.MDNS.Instance, server.Port(ln.Addr()))
		if err != nil {
			log.Warn("mdns disabled", observability.Error("error", err))
		} else {
			defer adv.Shutdown()
			log.Info("advertising", observability.String("service", server.ServiceType))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx, ln)
}
