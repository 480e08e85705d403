package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/sirupsen/logrus"

	"match-ticketing/config"
	"match-ticketing/handlers"
	"match-ticketing/internal/capacity"
	"match-ticketing/internal/services"
	"match-ticketing/internal/services/bank"
	"match-ticketing/internal/services/bank/wave"
	"match-ticketing/internal/store"
	"match-ticketing/internal/token"
	"match-ticketing/monitoring"
	"match-ticketing/security"
	"match-ticketing/utils"
)

func main() {
	cfg := config.LoadConfig()

	setupLogging(cfg)

	// Admission token codec. Previous keys stay valid for verification so
	// tickets issued before a rotation still scan.
	codec, err := token.NewCodec(cfg.TokenSigningKey, cfg.TokenPreviousKeys...)
	if err != nil {
		logrus.WithError(err).Fatal("invalid token signing key")
	}

	// Storage
	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer st.Close()

	// Redis backs the match locks and rate limiting
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	// PubNub (optional)
	var notifier *services.Notifier
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		notifier = services.NewNotifier(pubnub.NewPubNub(pnConfig))
	}

	// Payment gateways
	registry := bank.NewRegistry(bank.NewFactory())
	gateway, err := setupGateways(cfg, registry)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure payment gateway")
	}
	defer registry.Close(context.Background())

	// Core services
	ledger := capacity.NewLedger(st)
	locker := capacity.NewRedisLocker(redisClient)
	ticketService := services.NewTicketService(st, codec, ledger, locker, cfg.SerialPrefix)
	paymentService := services.NewPaymentService(st, gateway, notifier, cfg.PaymentTimeout)
	purchaseService := services.NewPurchaseService(st, ticketService, paymentService, notifier)
	scanService := services.NewScanService(codec, ticketService)
	matchService := services.NewMatchService(st)

	// Handlers
	ticketHandler := handlers.NewTicketHandler(purchaseService, ticketService, scanService)
	matchHandler := handlers.NewMatchHandler(matchService)
	rateLimiter := security.NewRateLimiter(redisClient)
	auth := handlers.AuthMiddleware(cfg.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background tasks
	go ticketService.RunExpirySweeper(ctx, cfg.ExpirySweepInterval)
	if cfg.EnableMetrics {
		monitoring.NewMonitor(ctx)
	}

	e := echo.New()
	e.Use(middleware.Recover())

	// Ticket endpoints
	e.POST("/api/tickets/purchase", ticketHandler.PurchaseTicket, auth, rateLimiter.PurchaseRateLimit(cfg.PurchaseRatePerMinute))
	e.GET("/api/tickets/user/me", ticketHandler.MyTickets, auth)
	e.GET("/api/tickets/match/:matchId", ticketHandler.MatchTickets, auth)
	e.GET("/api/tickets/:id", ticketHandler.GetTicket, auth)
	e.GET("/api/tickets/:id/qr", ticketHandler.TicketQR, auth)
	e.DELETE("/api/tickets/:id", ticketHandler.CancelTicket, auth)
	e.POST("/api/tickets/scan", ticketHandler.ScanTicket, auth, rateLimiter.ScanRateLimit(cfg.ScanRatePerMinute))

	// Match endpoints
	e.POST("/api/matches", matchHandler.CreateMatch, auth)
	e.GET("/api/matches", matchHandler.ListMatches)
	e.GET("/api/matches/:id", matchHandler.GetMatch)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	if cfg.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: e,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("forced shutdown")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// setupGateways registers the configured payment provider and returns the
// primary gateway used for new purchases.
func setupGateways(cfg *config.Config, registry *bank.Registry) (bank.Gateway, error) {
	ctx := context.Background()

	switch bank.Provider(cfg.PaymentProvider) {
	case bank.ProviderWave:
		waveConfig := &wave.Config{
			BaseURL:    cfg.WaveBaseURL,
			APIKey:     cfg.WaveAPIKey,
			MerchantID: cfg.WaveMerchantID,
			Currency:   cfg.Currency,
		}
		if err := registry.Register(ctx, bank.ProviderWave, waveConfig); err != nil {
			return nil, err
		}
	case bank.ProviderMock:
		if err := registry.Register(ctx, bank.ProviderMock, nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.PaymentProvider)
	}

	return registry.Primary()
}
