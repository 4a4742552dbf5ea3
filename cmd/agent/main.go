package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trattoria-be/internal/config"
	"trattoria-be/internal/connectivity"
	"trattoria-be/internal/logger"
	"trattoria-be/internal/offline"
	"trattoria-be/internal/submission"
	"trattoria-be/internal/utils"

	"go.uber.org/zap"
)

// Indirection for testing.
var startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("agent exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadAgentConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	monitor := connectivity.NewMonitor(
		cfg.BackendURL+"/health",
		cfg.ProbeInterval,
		cfg.SettleDelay,
		cfg.RequestTimeout,
	)
	client := submission.NewClient(cfg.BackendURL, cfg.RequestTimeout)

	queue, err := offline.NewQueue(offline.NewStore(cfg.StateFile), client, monitor, offline.Options{
		MaxRetries:     cfg.MaxRetries,
		FlushInterval:  cfg.FlushInterval,
		ItemDelay:      cfg.FlushItemDelay,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go monitor.Run(ctx)
	go queue.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.AgentPort,
		Handler: setupRouter(queue, monitor),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.L().Info("agent listening",
		zap.String("port", cfg.AgentPort),
		zap.String("backend", cfg.BackendURL),
	)
	if err := startServerFunc(srv); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupRouter exposes the local API the register frontend talks to. It only
// binds on the device; there is no auth layer.
func setupRouter(queue *offline.Queue, conn offline.Connectivity) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /enqueue", func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Payload) == 0 {
			utils.WriteJSONError(w, "payload is required", http.StatusBadRequest)
			return
		}

		var localID string
		var err error
		switch req.Type {
		case string(offline.TypeStatusUpdate):
			if req.OrderID == "" {
				utils.WriteJSONError(w, "order_id is required for status updates", http.StatusBadRequest)
				return
			}
			localID, err = queue.EnqueueStatusUpdate(req.OrderID, req.Payload)
		case "", string(offline.TypeSubmission):
			localID, err = queue.EnqueueSubmission(req.Payload)
		default:
			utils.WriteJSONError(w, "unknown entry type", http.StatusBadRequest)
			return
		}
		if err != nil {
			utils.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		utils.WriteJSON(w, http.StatusAccepted, map[string]string{"local_id": localID})
	})

	mux.HandleFunc("GET /queue", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, queueResponse{
			Online:  conn.Online(),
			Pending: queue.Pending(),
			Failed:  queue.Failed(),
			Recent:  queue.Recent(),
		})
	})

	mux.HandleFunc("POST /retry", func(w http.ResponseWriter, r *http.Request) {
		if err := queue.RetryFailed(r.Context()); err != nil {
			utils.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}

type enqueueRequest struct {
	Type    string          `json:"type"`
	OrderID string          `json:"order_id"`
	Payload json.RawMessage `json:"payload"`
}

type queueResponse struct {
	Online  bool             `json:"online"`
	Pending []*offline.Entry `json:"pending"`
	Failed  []*offline.Entry `json:"failed"`
	Recent  []*offline.Entry `json:"recent"`
}
