// Command predictor runs the market prediction serving core.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/satyarajmoily/market-predictor/internal/app/runtime"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication()
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("failed to initialise application")
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.NewDefault("main").WithError(err).Error("server error")
	}

	if err := app.Shutdown(context.Background()); err != nil {
		logger.NewDefault("main").WithError(err).Error("shutdown error")
		os.Exit(1)
	}
}
