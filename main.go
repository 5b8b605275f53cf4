package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/dify"
	"github.com/southdmw/zeus-ops-workorder/internal/adapter/llm"
	"github.com/southdmw/zeus-ops-workorder/internal/adapter/workorder"
	"github.com/southdmw/zeus-ops-workorder/internal/config"
	"github.com/southdmw/zeus-ops-workorder/internal/repository"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
	"github.com/southdmw/zeus-ops-workorder/internal/session"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
	server "github.com/southdmw/zeus-ops-workorder/internal/transport/http"
	"github.com/southdmw/zeus-ops-workorder/internal/transport/ws"
	"github.com/southdmw/zeus-ops-workorder/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting work-order assistant...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM URL: %s (model %s, mode %q)", cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMMode)
	log.Printf("Work-order API: %s", cfg.WorkOrderBaseURL)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize tools
	workOrderClient := workorder.NewClient(cfg.WorkOrderBaseURL, cfg.WorkOrderTimeout, cfg.WorkOrderMaxRetries, cfg.WorkOrderRPS)
	toolRegistry := tools.NewRegistry(policyEngine, cfg.ToolTimeout)
	if err := tools.RegisterPatrolTools(toolRegistry, workOrderClient, db); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	// Initialize LLM producer
	producer := llm.NewProducer(cfg)

	// Initialize service
	svc := service.New(db, producer, session.NewRegistry(), toolRegistry, cfg)
	svc.SetNatureLister(workOrderClient)
	svc.SetWorkflowRunner(dify.NewClient(cfg.DifyBaseURL, cfg.DifyAPIKey, cfg.DifyTimeout))

	// Create Echo server
	hub := ws.NewHub()
	e := server.NewServer(cfg, svc, hub)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down work-order assistant...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Work-order assistant stopped")
}
