// Package serve runs the HTTP API, websocket hub and analysis pipeline.
package serve

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/echoguard/echoguard-go/internal/alert"
	"github.com/echoguard/echoguard-go/internal/api"
	"github.com/echoguard/echoguard-go/internal/classifier"
	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hub"
	"github.com/echoguard/echoguard-go/internal/logging"
	"github.com/echoguard/echoguard-go/internal/observability"
	"github.com/echoguard/echoguard-go/internal/pipeline"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the EchoGuard service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database output enabled").
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	metrics.Pipeline.SetModelLoaded(false)

	cls, err := classifier.New(&settings.Model, classifier.DefaultThreatPolicy())
	if err != nil {
		return err
	}
	metrics.Pipeline.SetModelLoaded(true)

	broadcastHub := hub.New(&settings.Realtime, metrics.Realtime)
	defer broadcastHub.Shutdown()

	dispatcher := alert.NewDispatcher(&settings.Alerts, store, metrics.Realtime)
	processor := pipeline.New(settings, cls, store, dispatcher, broadcastHub, metrics.Pipeline)

	e := echo.New()
	e.HideBanner = true
	api.New(e, store, settings, processor, broadcastHub, metrics)

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("starting http server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
