package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebk/match-quiz/internal/bot"
	"github.com/glebk/match-quiz/internal/config"
	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/httpapi"
	"github.com/glebk/match-quiz/internal/pairing"
	"github.com/glebk/match-quiz/internal/questions"
	"github.com/glebk/match-quiz/internal/repository/filestore"
	"github.com/glebk/match-quiz/internal/repository/memory"
	"github.com/glebk/match-quiz/internal/repository/sqlite"
	"github.com/glebk/match-quiz/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, run)

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("match-quiz stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStores picks the session backend. Chat state lives next to the sessions
// when the backend is a database and in memory otherwise.
func openStores(cfg *config.Config, generator pairing.Generator) (domain.SessionStore, domain.ChatStateRepository, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		slog.Info("database initialized", "path", cfg.DatabasePath)
		return sqlite.NewSessionRepository(db, generator), sqlite.NewChatStateRepository(db), nil

	case config.StoreFile:
		store, err := filestore.NewSessionStore(cfg.DataDir, generator)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("file store initialized", "dir", cfg.DataDir)
		return store, memory.NewChatStateRepository(), nil

	default:
		return memory.NewSessionStore(generator), memory.NewChatStateRepository(), nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	qs, err := questions.Load(cfg.QuestionsPath)
	if err != nil {
		return err
	}
	logger.Info("questions loaded", "path", cfg.QuestionsPath, "count", qs.Len())

	store, chats, err := openStores(cfg, pairing.NewGenerator(cfg.CodeDigits))
	if err != nil {
		return err
	}
	defer store.Close()

	quiz := service.NewQuizService(store, qs, nil, logger,
		service.WithCodeDigits(cfg.CodeDigits),
		service.WithChatStates(chats),
	)

	telegramBot, err := bot.New(cfg.TelegramToken, quiz, chats, cfg, logger)
	if err != nil {
		return err
	}
	quiz.SetNotifier(telegramBot)

	if cfg.SessionTTL > 0 {
		go quiz.RunExpiry(ctx, cfg.SessionTTL, cfg.ExpiryInterval)
		logger.Info("session expiry started", "ttl", cfg.SessionTTL, "interval", cfg.ExpiryInterval)
	}

	var updates httpapi.UpdateHandler
	if cfg.Mode == config.ModeWebhook {
		updates = telegramBot
	}
	handler := httpapi.NewHandler(quiz, updates, telegramBot, config.ReleaseVersion, logger)
	srv := httpapi.NewServer(cfg.Addr(), handler.Router())

	errCh := make(chan error, 2)

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	if cfg.Mode == config.ModeWebhook {
		if err := telegramBot.SetWebhook(cfg.WebhookURL()); err != nil {
			return err
		}
		defer func() {
			if err := telegramBot.DeleteWebhook(); err != nil {
				logger.Warn("error deleting webhook", "error", err)
			}
		}()
	} else {
		botDone := make(chan struct{})
		go func() {
			defer close(botDone)
			logger.Info("bot started, polling for updates")
			if err := telegramBot.Start(ctx); err != nil {
				errCh <- fmt.Errorf("bot stopped: %w", err)
			}
		}()
		// Start returns once in-flight updates are handled; the store closes after that
		defer func() {
			cancel()
			<-botDone
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("shutting down after failure", "error", err)
	}

	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("server forced to shutdown", "error", serr)
	}

	return err
}
