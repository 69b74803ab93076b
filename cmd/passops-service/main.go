package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/apogee-systems/passops/internal/archive"
	"github.com/apogee-systems/passops/internal/auth"
	"github.com/apogee-systems/passops/internal/config"
	"github.com/apogee-systems/passops/internal/events"
	"github.com/apogee-systems/passops/internal/httpserver"
	"github.com/apogee-systems/passops/internal/passfeed"
	"github.com/apogee-systems/passops/internal/store"
	"github.com/apogee-systems/passops/internal/txn"
	"github.com/apogee-systems/passops/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	pg := store.NewPGStore(db)

	bus := events.NewBus()
	emitter := events.Emitter(bus)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaEmitter, err := events.NewKafkaEmitter(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka emitter init: %v", err)
		}
		defer kafkaEmitter.Close()
		emitter = events.Multi{bus, kafkaEmitter}
	}

	var archiver txn.Archiver
	if cfg.ArchiveBucket != "" {
		s3Archiver, err := archive.NewS3Archiver(context.Background(), cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Fatalf("s3 archiver init: %v", err)
		}
		archiver = s3Archiver
	}

	var feed *passfeed.Client
	if cfg.PassFeedURL != "" {
		feed, err = passfeed.NewClient(passfeed.ClientConfig{
			BaseURL: cfg.PassFeedURL,
			Timeout: 5 * time.Second,
			Retries: 2,
		})
		if err != nil {
			log.Fatalf("passfeed client init: %v", err)
		}
	} else {
		log.Printf("no passfeed url configured; workspace opens require inline candidates")
	}

	var verifier *auth.Verifier
	if !cfg.AuthDisabled {
		verifier, err = auth.NewVerifier(cfg.AuthSecret)
		if err != nil {
			log.Fatalf("auth verifier init: %v", err)
		}
	}

	registry := workspace.NewRegistry(pg, emitter, archiver)
	server := httpserver.New(registry, feed, verifier, pg)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("passops service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
