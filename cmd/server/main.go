package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trattoria-be/internal/config"
	"trattoria-be/internal/db"
	"trattoria-be/internal/logger"
	"trattoria-be/internal/middleware"
	"trattoria-be/internal/order"
	"trattoria-be/internal/printjob"

	"go.uber.org/zap"
)

// Indirections for testing.
var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := printjob.NewService(cfg.JobRetention, cfg.SweepInterval)
	go jobs.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: newServer(cfg, database, jobs),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.L().Info("server listening", zap.String("port", cfg.AppPort))
	if err := startServerFunc(srv); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newServer wires repositories and services onto the router.
func newServer(cfg *config.Config, database *sql.DB, jobs printjob.Service) http.Handler {
	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, jobs, order.Options{
		Surcharges: map[string]float64{
			"large":  1.50,
			"family": 4.00,
		},
		ReceiptHeader: cfg.ReceiptHeader,
		ReceiptFooter: cfg.ReceiptFooter,
		ReceiptQRURL:  cfg.ReceiptQRURL,
		PrinterMAC:    cfg.PrinterMAC,
	})

	return setupRouter(orderSvc, jobs)
}

func setupRouter(orderSvc order.Service, jobs printjob.Service) http.Handler {
	mux := http.NewServeMux()
	order.NewHandler(orderSvc).Mount(mux)
	printjob.NewHandler(jobs).Mount(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	handler = middleware.RateLimitMiddleware(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}
