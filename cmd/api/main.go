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

	"github.com/go-carrier-billing/internal/application/operators"
	"github.com/go-carrier-billing/internal/config"
	"github.com/go-carrier-billing/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-carrier-billing/internal/infrastructure/jwt"
	s3infra "github.com/go-carrier-billing/internal/infrastructure/s3"
	"github.com/go-carrier-billing/internal/infrastructure/sns"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
	"github.com/go-carrier-billing/internal/pkg/clock"
	transporthttp "github.com/go-carrier-billing/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// Webhook payload archive.
	s3Client := s3infra.NewClient(cfg)
	archive := s3infra.NewArchive(s3Client, cfg.S3BucketName)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		Operators:      operators.NewTable(),
		Gateway:        upstream.NewGateway(cfg),
		RecordRepo:     dynamo.NewBillingRecordRepo(dynamoClient, cfg.DynamoTables.BillingRecords),
		SubRepo:        dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions),
		AnonRefRepo:    dynamo.NewAnonymousRefRepo(dynamoClient, cfg.DynamoTables.AnonymousRefs),
		WebhookArchive: archive,
		SMSSender:      smsSender,
		JWTProvider:    jwtProvider,
		Clock:          clock.System{},
	}

	sweepCtx, stopSweepers := context.WithCancel(context.Background())
	defer stopSweepers()
	router := transporthttp.NewRouter(sweepCtx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // upstream calls may take up to 30s
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
