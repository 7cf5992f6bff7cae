package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/assoforge/cotiz/internal/config"
	"github.com/assoforge/cotiz/internal/log"
	"github.com/assoforge/cotiz/internal/otel"
	"github.com/assoforge/cotiz/internal/profile"
	"github.com/assoforge/cotiz/internal/rest"
	"github.com/assoforge/cotiz/pkg/dtree"
	"github.com/assoforge/cotiz/pkg/storage/inmemory"
)

func main() {
	profile.InitProfile()
	log.Init()

	appContext, ctxCancel := context.WithCancel(context.Background())

	conf := config.InitConfig()

	openTelemetry, err := otel.SetupOtel(conf.Tracing)
	if err != nil {
		log.Error("Failed to set up OTEL: %s", err)
		os.Exit(1)
	}

	engine := dtree.NewEngine(
		dtree.EngineWithStorage(inmemory.NewStorage()),
		dtree.EngineWithName(conf.Name),
	)

	// Start the public API
	svr := rest.NewServer(&engine, conf)
	svr.Start()

	appStop := make(chan os.Signal, 2)
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	handleSigterm(appStop, appContext)

	ctxCancel()
	// cleanup
	svr.Stop(appContext)
	openTelemetry.Stop(appContext)
	log.Sync()
}

func handleSigterm(appStop chan os.Signal, ctx context.Context) {
	sig := <-appStop
	log.Infof(ctx, "Received %s. Shutting down", sig.String())
}
