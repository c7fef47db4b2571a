package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/alecthomas/kong"
	"github.com/radovskyb/watcher"
)

type SiteFlags struct {
	Config string `short:"c" help:"Path to the site configuration file (.yml, .yaml, .toml or .json)." type:"path"`
	Source string `short:"s" help:"Directory with the posts. Overrides sourceDir." type:"path"`
	Output string `short:"o" help:"Output directory. Overrides outputDir." type:"path"`
	Drafts bool   `help:"Include posts marked as drafts."`
}

type cli struct {
	Verbose bool `short:"v" help:"Enable debug logging."`

	Build struct {
		SiteFlags
	} `cmd:"" help:"Build the site once."`

	Watch struct {
		SiteFlags
		Serve bool `help:"Serve the output directory while watching."`
		Port  int  `short:"p" default:"9999" help:"Port for --serve."`
	} `cmd:"" help:"Build the site and rebuild it on changes to the input directories."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var c cli
	exitCode := -1
	parser, err := kong.New(&c,
		kong.Name("blogsite"),
		kong.Description("A static blog generator."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help and friends
		return exitCode
	}
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	logLevel := slog.LevelInfo
	if c.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch kctx.Command() {
	case "build":
		err = buildCommand(ctx, c.Build.SiteFlags)
	case "watch":
		err = watchCommand(ctx, c.Watch.SiteFlags, c.Watch.Serve, c.Watch.Port)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		logBuildError("Build failed", err)
		return 1
	}
	return 0
}

func logBuildError(msg string, err error) {
	if kind, paths, ok := kindOf(err); ok {
		slog.Error(msg, "kind", kind, "path", paths, "error", err)
		return
	}
	slog.Error(msg, "error", err)
}

func buildCommand(ctx context.Context, flags SiteFlags) error {
	conf, err := readConf(flags.Config, flags)
	if err != nil {
		return err
	}
	return renderSite(ctx, conf)
}

func renderSite(ctx context.Context, conf *SiteConf) error {
	site, err := ReadSite(conf)
	if err != nil {
		return err
	}
	return site.Build(ctx)
}

func watchCommand(ctx context.Context, flags SiteFlags, serve bool, port int) error {
	conf, err := readConf(flags.Config, flags)
	if err != nil {
		return err
	}

	if err := renderSite(ctx, conf); err != nil {
		logBuildError("Initial build failed", err)
	}

	errs := make(chan error, 2)
	go func() { errs <- rerenderOnChange(ctx, conf) }()
	if serve {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           gziphandler.GzipHandler(http.FileServer(http.Dir(conf.OutputDir))),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Serving site", "dir", conf.OutputDir, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
		defer srv.Close()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

// rerenderOnChange rebuilds the site on every change below the source,
// layouts and static directories until ctx is done. Failed rebuilds are
// logged; the previous output stays in place.
func rerenderOnChange(ctx context.Context, conf *SiteConf) error {
	w := watcher.New()
	w.SetMaxEvents(1)
	w.IgnoreHiddenFiles(true)

	if err := w.Ignore(conf.OutputDir); err != nil {
		slog.Debug("Output directory not ignored", "dir", conf.OutputDir, "error", err)
	}
	for _, dir := range []string{conf.SourceDir, conf.LayoutsDir, conf.StaticDir} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.AddRecursive(dir); err != nil {
			return fmt.Errorf("watching %v: %w", dir, err)
		}
	}

	go func() {
		for {
			select {
			case event := <-w.Event:
				slog.Info("Change detected, rebuilding", "path", event.Path, "op", event.Op.String())
				if err := renderSite(ctx, conf); err != nil {
					logBuildError("Rebuild failed", err)
				}
			case err := <-w.Error:
				slog.Error("Watcher error", "error", err)
			case <-ctx.Done():
				w.Close()
				return
			case <-w.Closed:
				return
			}
		}
	}()

	slog.Info("Watching for changes", "dir", conf.SourceDir)
	return w.Start(200 * time.Millisecond)
}
