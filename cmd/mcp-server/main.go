// Package main provides the standalone entry point for the cohort outreach
// MCP server. This version requires no external databases - patient data
// lives in SQLite and reminders print to the console.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()

	log.Printf("Starting Cohort Outreach MCP Server (data dir: %s)", cfg.DataDir)

	server, err := mcp.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	log.Println("Cohort Outreach MCP Server stopped")
}
