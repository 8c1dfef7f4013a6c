package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/charon/pkg/api"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/metrics"
	"github.com/psantana5/charon/pkg/shutdown"
	"github.com/psantana5/charon/pkg/systemd"
	"github.com/psantana5/charon/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the charon daemon",
	Long: `Listens on the control socket for unit, prompt and command requests.
With metrics_addr set, /metrics is also served over TCP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveLogFile bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveLogFile, "log-file", false, "also log to /var/log/charon/daemon/daemon.log")
}

func runServe(cmd *cobra.Command, args []string) error {
	base := logging.Default()
	if serveLogFile {
		fileLogger, err := logging.NewFileLogger("daemon", "daemon", cfg.Level(), cfg.LogJSON)
		if err != nil {
			return err
		}
		defer fileLogger.Close()
		logging.SetDefault(fileLogger)
		base = fileLogger
	}
	logger := base.WithField("component", "daemon")

	if cfg.DebugMode() {
		logger.Warn("Debug mode: units and responses will not be written")
	}

	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: api.Version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	units := systemd.NewWriter(cfg.SystemdRoot, systemd.NewSystemctlReloader(), cfg.DebugMode())
	units.SetLogger(logger.WithField("component", "systemd"))

	server := api.NewServer(api.Options{
		Registry:       openRegistry(),
		Units:          units,
		Metrics:        m,
		Tracer:         tp,
		Logger:         logger,
		Debug:          cfg.DebugMode(),
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	ln, err := api.Listen(cfg.Socket)
	if err != nil {
		return err
	}

	mgr := shutdown.New(30 * time.Second)
	mgr.SetLogger(logger)
	mgr.Register("tracer", tp.Shutdown)
	mgr.Register("socket", shutdown.RemoveFile(cfg.Socket))
	mgr.Register("control server", server.Shutdown)

	errCh := make(chan error, 2)
	go func() {
		if err := server.Serve(ln); err != nil {
			errCh <- err
		}
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		}
		mgr.Register("metrics server", shutdown.StopHTTPServer(metricsServer))
		go func() {
			logger.Info("Serving metrics", map[string]interface{}{"address": cfg.MetricsAddr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var serveErr error
	go func() {
		serveErr = <-errCh
		logger.Error("Server failed", map[string]interface{}{"error": serveErr.Error()})
		mgr.Trigger()
	}()

	mgr.Wait()
	if failed := mgr.Shutdown(); failed > 0 && serveErr == nil {
		return errors.New("shutdown did not complete cleanly")
	}
	return serveErr
}

