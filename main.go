package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"barber-queue/clients"
	"barber-queue/config"
	"barber-queue/handlers"
	"barber-queue/models"
	"barber-queue/services"
	"barber-queue/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	clock := clockwork.NewRealClock()

	api := clients.NewBarberAPI(&clients.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	})

	store := services.NewSessionStore(redisClient)
	center := services.NewNotificationCenter(clock, &processTitle{}, &consoleAudio{}, &consoleHaptics{})

	ewt := services.NewEWTTracker(clock, cfg.EWTTickInterval)
	notifier := services.NewTurnNotifier(center, store, clock, cfg.ModalHoldSeconds)
	geofence := services.NewGeofenceWatcher(center, store, clock,
		cfg.ShopLatitude, cfg.ShopLongitude, cfg.GeofenceRadiusMeters, cfg.GeofenceCooldown)
	chat := services.NewChatService(api, store)
	recon := services.NewReconciler(api, ewt, notifier, clock, cfg.PollInterval)
	analytics := services.NewAnalyticsService(api)

	rtCfg := &services.RealtimeConfig{
		SubscribeKey: cfg.PubNubSubscribeKey,
		UUID:         cfg.PubNubUUID,
	}
	session := services.NewSession(api, store, ewt, notifier, geofence, chat, recon,
		func(ctx context.Context, barberID string, wake func(trigger string)) services.Subscription {
			return services.SubscribeQueueEvents(ctx, rtCfg, barberID, wake)
		},
		func(ctx context.Context, userID, queueEntryID string, onMessage func(models.ChatMessage)) (services.ChatTransport, error) {
			return services.DialChatSocket(ctx, cfg.ChatSocketURL, userID, queueEntryID, onMessage)
		},
	)

	// Rebuild identity, join and sticky modal from the durable store.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := session.Restore(ctx); err != nil {
			log.Error().Err(err).Msg("session restore failed")
		}
	}()

	e := echo.New()
	e.Use(requestID)

	handlers.NewAuthHandler(api, session).Register(e)
	handlers.NewQueueHandler(api, session, recon, ewt, notifier, geofence, center, store).Register(e)
	handlers.NewChatHandler(chat).Register(e)
	handlers.NewBarberHandler(api, analytics, recon).Register(e)

	if cfg.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go handleShutdown(server)

	log.Info().Str("port", cfg.Port).Msg("ui gateway listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// requestID tags every gateway response so UI-side reports can be matched
// against the daemon log.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id, err := utils.GenerateCode(6); err == nil {
			c.Response().Header().Set("X-Request-Id", id)
		}
		return next(c)
	}
}

// handleShutdown handles graceful shutdown.
func handleShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info().Msg("shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// processTitle stands in for the document title: the UI polls it through the
// queue view, so blinking only needs a readable/writable string.
type processTitle struct {
	mu    sync.Mutex
	title string
}

func (t *processTitle) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.title == "" {
		return "Barber Queue"
	}
	return t.title
}

func (t *processTitle) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = title
}

// consoleAudio logs in place of a speaker.
type consoleAudio struct{}

func (consoleAudio) Play() {
	log.Info().Msg("alert sound played")
}

// consoleHaptics logs in place of a vibration motor.
type consoleHaptics struct{}

func (consoleHaptics) Vibrate(pattern []int) {
	log.Info().Ints("pattern_ms", pattern).Msg("vibration requested")
}
