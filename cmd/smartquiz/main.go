package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/smartquiz/smartquiz/internal/bot"
	"github.com/smartquiz/smartquiz/internal/config"
	"github.com/smartquiz/smartquiz/internal/line"
	"github.com/smartquiz/smartquiz/internal/logging"
	"github.com/smartquiz/smartquiz/internal/quiz"
	"github.com/smartquiz/smartquiz/internal/session"
	"github.com/smartquiz/smartquiz/internal/store"
	"github.com/smartquiz/smartquiz/internal/survey"
)

const sweepInterval = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ledger, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "smartquiz.db"))
	if err != nil {
		log.Fatal("opening event ledger", zap.Error(err))
	}
	defer ledger.Close()

	sessions := session.NewStore()
	locks := session.NewManager()
	machine := quiz.New(survey.Default(), sessions)
	lineClient := line.NewClient(cfg.LineAPIBaseURL, cfg.ChannelAccessToken)

	botHandler := bot.NewHandler(lineClient, machine, locks, ledger, log)
	webhookHandler := line.NewWebhookHandler(cfg.ChannelSecret, botHandler.HandleText, botHandler.HandlePostback, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic cleanup of abandoned sessions, idle per-user locks and old ledger entries
	go sweep(ctx, log, cfg, sessions, locks, ledger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/callback", webhookHandler.HandleCallback)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Int("outcomes", survey.Default().Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		return
	}
	log.Info("stopped")
}

func sweep(ctx context.Context, log *zap.Logger, cfg *config.Config, sessions *session.Store, locks *session.Manager, ledger store.EventLedger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pruned := sessions.Prune(cfg.SessionTTL)
		freed := locks.Cleanup(cfg.SessionTTL)
		events, err := ledger.Prune(time.Now().Add(-cfg.EventTTL))
		if err != nil {
			log.Warn("pruning event ledger", zap.Error(err))
		}
		log.Debug("sweep",
			zap.Int("sessions", pruned),
			zap.Int("locks", freed),
			zap.Int("events", events),
		)
	}
}
