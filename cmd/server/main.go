package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/config"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/server"
)

func main() {
	// Flags override config file and environment
	port := flag.String("port", "", "Server port")
	dir := flag.String("dir", "", "Storage root directory")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dir != "" {
		cfg.Storage.Root = *dir
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	// leave room for every plugin's shutdown grace window
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout+10*time.Second)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}
