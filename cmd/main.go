package main

import (
	"fmt"
	"os"

	"github.com/lucemdev/fundtrace/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		application.Log.Fatal("failed to start dispatcher", "error", err)
	}

	application.Log.Info("listening", "addr", application.Cfg.Addr)
	if err := application.Run(); err != nil {
		application.Log.Fatal("server exited", "error", err)
	}
}
