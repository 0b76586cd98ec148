package main

import (
	"log"

	"github.com/smallsky163/hualin-assistant/internal/app"
	"github.com/smallsky163/hualin-assistant/internal/app/config"
)

func main() {
	cfg := config.MustLoad()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	application.Run()
}
