package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prismbi/prism-backend/internal/app"
	"github.com/prismbi/prism-backend/internal/observability"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	shutdownOTel := observability.InitOTel(context.Background(), a.Log, observability.OtelConfig{
		ServiceName: "prism-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	defer func() {
		if shutdownOTel != nil {
			if err := shutdownOTel(context.Background()); err != nil {
				a.Log.Warn("otel shutdown failed", "error", err)
			}
		}
	}()

	a.Start()

	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("Server failed", "error", err)
	}
}
