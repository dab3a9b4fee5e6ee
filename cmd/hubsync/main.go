package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/odvcencio/hubsync/internal/config"
	"github.com/odvcencio/hubsync/internal/hub"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one command line. Failures are logged before returning.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCmd(out, errOut)
	root.SetArgs(args)
	defer a.teardown()
	if err := root.ExecuteContext(ctx); err != nil {
		a.log().Error("hubsync failed", "error", err)
		return err
	}
	return nil
}

// app carries the state shared by every command for one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg       *config.Config
	logger    *slog.Logger
	client    *hub.Client
	shutdowns []func(context.Context) error
}

func newRootCmd(out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "hubsync",
		Short:         "Synchronize database change tracking with the Hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (json or text)")

	root.AddCommand(
		newStatusCmd(a),
		newProjectsCmd(a),
		newEnvironmentsCmd(a),
		newChangeLogsCmd(a),
		newChangesCmd(a),
		newOperationsCmd(a),
		newFakeHubCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(a.errOut, cfg.Log)
	slog.SetDefault(a.logger)

	traceShutdown, err := initTracing(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdowns = append(a.shutdowns, traceShutdown)

	if cfg.Telemetry.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.Telemetry.MetricsAddr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil {
			a.log().Error("shutdown", "error", err)
		}
	}
	a.shutdowns = nil
}

// log returns the configured logger, or a JSON logger on errOut when
// setup failed before one was built.
func (a *app) log() *slog.Logger {
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(a.errOut, nil))
	}
	return a.logger
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", hub.MetricsHandler(prometheus.DefaultGatherer))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics listener", "error", err)
		}
	}()
	a.shutdowns = append(a.shutdowns, srv.Shutdown)
	return nil
}

// hubClient returns a client whose session has been probed and found available.
func (a *app) hubClient(ctx context.Context) (*hub.Client, error) {
	if a.client == nil {
		c, err := hub.New(hub.Options{
			URL:       a.cfg.Hub.URL,
			APIKey:    a.cfg.SessionAPIKey(),
			Timeout:   a.cfg.TimeoutDuration(),
			UserAgent: "hubsync/" + version,
			Logger:    a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.client = c
	}
	probe := a.client.Session().Probe(ctx)
	if !probe.Available {
		if probe.Err != nil {
			return nil, fmt.Errorf("hub is not available: %w", probe.Err)
		}
		return nil, fmt.Errorf("hub is not available: %s", probe.Reason)
	}
	return a.client, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
