package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "grabber"

// maxUpdateBytes caps a webhook body. Updates are small JSON documents.
const maxUpdateBytes = 10 * 1024 * 1024

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies like traefik),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// BotInterface is an interface that abstracts the bot's functionality needed by the web server.
type BotInterface interface {
	HandleUpdateAsync(ctx context.Context, update json.RawMessage, remoteAddr string)
	API() telegram.BotAPI
}

// Checkpointer flushes the database write-ahead log.
type Checkpointer interface {
	Checkpoint() error
}

type Server struct {
	cfg             *config.Config
	userRepo        storage.UserRepository
	maintenanceRepo storage.MaintenanceRepository
	checkpointer    Checkpointer
	bot             BotInterface
	logger          *slog.Logger
	ctx             context.Context // Server's parent context for webhook processing
	wg              sync.WaitGroup
}

// NewServer creates the HTTP server. Any repository may be nil, which
// disables the matching maintenance step.
func NewServer(ctx context.Context, logger *slog.Logger, cfg *config.Config, userRepo storage.UserRepository, maintenanceRepo storage.MaintenanceRepository, checkpointer Checkpointer, bot BotInterface) *Server {
	return &Server{
		cfg:             cfg,
		userRepo:        userRepo,
		maintenanceRepo: maintenanceRepo,
		checkpointer:    checkpointer,
		bot:             bot,
		logger:          logger.With("component", "web_server"),
		ctx:             ctx,
	}
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", instrument("healthz", s.healthzHandler))
	if s.cfg.Telegram.WebhookPath != "" {
		mux.Handle("/telegram/"+s.cfg.Telegram.WebhookPath, instrument("webhook", s.webhookHandler))
	}
	mux.Handle("/metrics", promhttp.Handler())

	return s.loggingMiddleware(mux)
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	// Update metrics immediately on startup, then periodically
	s.runMaintenance()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Database.GetMaintenanceInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runMaintenance()
			}
		}
	}()

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.wg.Wait() // Wait for background goroutines to finish
	return nil
}

// runMaintenance refreshes gauges, trims delivery history and checkpoints the WAL.
func (s *Server) runMaintenance() {
	if s.userRepo != nil {
		users, err := s.userRepo.GetAllUsers()
		if err != nil {
			s.logger.Error("failed to get users for metrics", "error", err)
		} else {
			usersTotal.Set(float64(len(users)))
		}
	}

	if s.maintenanceRepo != nil {
		s.updateStorageMetrics()
		s.runCleanup()
	}

	if s.checkpointer != nil {
		if err := s.checkpointer.Checkpoint(); err != nil {
			s.logger.Warn("WAL checkpoint failed", "error", err)
		}
	}
}

// updateStorageMetrics publishes database and table sizes.
func (s *Server) updateStorageMetrics() {
	dbSize, err := s.maintenanceRepo.GetDBSize()
	if err != nil {
		s.logger.Error("failed to get DB size", "error", err)
		dbSize = -1
	}

	tableSizes, err := s.maintenanceRepo.GetTableSizes()
	if err != nil {
		s.logger.Error("failed to get table sizes", "error", err)
	}
	storage.ReportSizes(dbSize, tableSizes)
}

// runCleanup trims the delivery history of every user.
func (s *Server) runCleanup() {
	keep := s.cfg.Database.KeepDeliveriesPerUser
	if keep <= 0 {
		return
	}

	start := time.Now()
	deleted, err := s.maintenanceRepo.CleanupDeliveries(keep)
	if err != nil {
		s.logger.Error("failed to trim delivery history", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("trimmed delivery history", "deleted", deleted, "keep_per_user", keep, "duration", time.Since(start))
	}
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		recordWebhookRejected(rejectMethod)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// Verify Telegram secret token if configured
	if s.cfg.Telegram.WebhookSecret != "" {
		token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Telegram.WebhookSecret)) != 1 {
			recordWebhookRejected(rejectSecret)
			s.logger.Warn("Webhook request with invalid secret token", "client_ip", getClientIP(r), "user_agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			recordWebhookRejected(rejectTooLarge)
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		recordWebhookRejected(rejectRead)
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	recordWebhookUpdate(len(body))

	// Acknowledge the update immediately to prevent Telegram from resending it.
	w.WriteHeader(http.StatusOK)

	// Use server's context (not request context) so processing continues after handler returns.
	s.bot.HandleUpdateAsync(s.ctx, json.RawMessage(body), getClientIP(r))
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		// We don't log webhook requests at all
		if s.cfg.Telegram.WebhookPath != "" && path == "/telegram/"+s.cfg.Telegram.WebhookPath {
			next.ServeHTTP(w, r)
			return
		}

		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}
