package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/okian/homeview/internal/adapters/http/controller"
	app "github.com/okian/homeview/internal/app"
	"github.com/okian/homeview/internal/config"
	"github.com/okian/homeview/pkg/logger"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server (default)",
	Action: serve,
}

var routesCommand = &cli.Command{
	Name:  "routes",
	Usage: "Print the active route table",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Value: "text",
			Usage: "output format: text or yaml",
		},
	},
	Action: func(c *cli.Context) error {
		return printRoutes(c.App.Writer, controller.Routes(), c.String("format"))
	},
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(ctx, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	if err := logger.InitWithWriter(out, logger.Format(strings.ToLower(cfg.LogFormat))); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(app.WithConfig(cfg), app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-svc.Errors():
		if ok {
			serveErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

func printRoutes(w io.Writer, routes []controller.Route, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(routes); err != nil {
			return fmt.Errorf("encode routes: %w", err)
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPATTERN\tVIEW")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Pattern, r.View)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", format)
	}
}
