package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/retryer"
	"github.com/simplesurance/mergekeeper/internal/trigger"
)

const metricsEndpoint = "/metrics"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "receive case notifications from the issue tracker and trigger actions",
		Long: `serve starts a HTTP server that receives notifications about changed cases
from the issue tracker. The cases are evaluated against the configured trigger
rules, the actions of matching rules are executed, e.g. to start the CI job
that integrates the feature branch.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) (*http.Server, <-chan error) {
	errCh := make(chan error, 1)
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			close(errCh)
			return
		}

		errCh <- fmt.Errorf("http server terminated unexpectedly: %w", err)
	}()

	return &httpServer, errCh
}

func shutdownHTTPServer(srv *http.Server) {
	const shutdownTimeout = 30 * time.Second
	ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelFn()

	logger.Debug(
		"terminating http server",
		logfields.Event("http_server_terminating"),
		zap.Duration("shutdown_timeout", shutdownTimeout),
	)

	err := srv.Shutdown(ctx)
	if err != nil {
		logger.Warn(
			"shutting down http server failed",
			logfields.Event("http_server_termination_failed"),
			zap.Error(err),
		)
	}
}

func runServe() error {
	if config.Trigger.HTTPListenAddr == "" {
		return fmt.Errorf("trigger.http_listen_addr must be defined in the config file %s", args.ConfigFile)
	}

	rules, err := trigger.RulesFromCfg(config.Trigger.Rules)
	if err != nil {
		return fmt.Errorf("could not parse rules from configuration file %s: %w", args.ConfigFile, err)
	}

	if len(rules) == 0 {
		return fmt.Errorf("config file %s does not define any trigger rules, nothing to do", args.ConfigFile)
	}

	// lookups are not retried, the tracker resends the notification when
	// the request fails
	cases, err := newTrackerClient()
	if err != nil {
		return err
	}

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", args.ConfigFile),
		zap.String("http_server_listen_addr", config.Trigger.HTTPListenAddr),
		zap.String("trigger_endpoint", config.Trigger.Endpoint),
		zap.String("tracker_backend", config.Tracker.Backend),
		zap.String("tracker_token", hide(config.Tracker.Token)),
		zap.String("job_to_trigger", config.Trigger.JobToTrigger),
		zap.Duration("retry_timeout", config.Trigger.RetryTimeout),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("rules", rules.String()),
	)

	evLoop := trigger.NewEventLoop(
		rules,
		retryer.New(retryer.WithTimeout(config.Trigger.RetryTimeout)),
		trigger.WithActionRoutineDeferFunc(panicHandler),
		trigger.WithJobToTrigger(config.Trigger.JobToTrigger),
	)
	go evLoop.Start()

	mux := http.NewServeMux()
	mux.Handle(config.Trigger.Endpoint, trigger.NewHTTPHandler(config.Tracker.Backend, cases, evLoop.C()))
	mux.Handle(metricsEndpoint, promhttp.Handler())

	logger.Info(
		"registered http endpoints",
		logfields.Event("http_handler_registered"),
		zap.String("trigger_endpoint", config.Trigger.Endpoint),
		zap.String("metrics_endpoint", metricsEndpoint),
	)

	srv, errCh := startHTTPServer(config.Trigger.HTTPListenAddr, mux)

	// the server must be stopped before the event loop, otherwise the
	// handler could send to the closed event channel
	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))

		shutdownHTTPServer(srv)

		logger.Debug("stopping event loop", logfields.Event("event_loop_stopping"))
		evLoop.Stop()
	})

	return <-errCh
}
