package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tablepos/api/internal/config"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/gateway"
	"github.com/tablepos/api/internal/notify"
	"github.com/tablepos/api/internal/receipt"
	"github.com/tablepos/api/internal/router"
	"github.com/tablepos/api/internal/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	sender, closeSender, err := receiptSender(cfg)
	if err != nil {
		log.Fatalf("Unable to set up receipt sender: %v", err)
	}
	defer closeSender() //nolint:errcheck
	dispatcher := receipt.NewDispatcher(sender, cfg.ReceiptFrom)

	hub := ws.NewHub()
	r := router.New(cfg, database.New(pool), pool, hub, router.Deps{
		Gateway:  gateway.NewSimulator(cfg.GatewayFailureRate, cfg.GatewayLatency, nil),
		Receipts: dispatcher,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: server: %v", err)
	}

	// Payments that committed before shutdown still get their receipts.
	dispatcher.Wait()
	log.Println("Server stopped")
}

// receiptSender picks the notification backend named by RECEIPT_SENDER.
func receiptSender(cfg *config.Config) (notify.Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ReceiptSender {
	case "file":
		log.Printf("Receipts are written to %s", cfg.ReceiptDir)
		return notify.NewFileSender(cfg.ReceiptDir, cfg.ReceiptFrom), noop, nil
	case "amqp":
		s, closeFn, err := notify.DialAMQP(cfg.RabbitMQURL, cfg.ReceiptQueue, cfg.ReceiptFrom)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Receipts are published to queue %s", cfg.ReceiptQueue)
		return s, closeFn, nil
	case "none", "":
		log.Println("WARNING: receipts are discarded")
		return notify.Discard{}, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown RECEIPT_SENDER %q", cfg.ReceiptSender)
}
