package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/bot"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/config"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/handler"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/judge"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/logger"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/middleware"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository/postgres"
	redisrepo "github.com/laby37200-cell/civilization-forge-sub000/internal/repository/redis"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

func main() {
	logger.Init()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Str("databaseURL", cfg.DatabaseURL).Dur("turnDuration", cfg.TurnDuration).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(context.Background(), cfg.DatabaseURL, postgres.DefaultPool)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	if err := postgres.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}

	// Redis
	redisClient, err := redisrepo.Connect(context.Background(), cfg.RedisURL, redisrepo.Options{PoolSize: 20, DialTimeout: 5 * time.Second})
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	worldRepo := postgres.NewWorldRepo(db)
	newsRepo := postgres.NewNewsRepo(db)
	actionLog := postgres.NewActionLogRepo(db)

	// Engine, with the LLM judge when configured
	opts := []realm.Option{realm.WithLogger(logger.Get()), realm.WithJudgeTimeout(cfg.Judge.Timeout)}
	if j := judge.New(judge.Config{
		URL:        cfg.Judge.URL,
		APIKey:     cfg.Judge.APIKey,
		Model:      cfg.Judge.Model,
		RatePerMin: cfg.Judge.RatePerMin,
		Timeout:    cfg.Judge.Timeout,
	}); j != nil {
		opts = append(opts, realm.WithJudge(j), realm.WithNarrator(j))
		log.Info().Str("model", cfg.Judge.Model).Msg("Strategy judge enabled")
	} else {
		log.Warn().Msg("Strategy judge disabled, battles use fallback scores")
	}
	engine := realm.NewEngine(opts...)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	turnSvc := service.NewTurnService(service.TurnDeps{
		Worlds:      worldRepo,
		News:        newsRepo,
		Queue:       redisClient,
		Clock:       redisClient,
		Archive:     actionLog,
		Memory:      redisClient,
		Engine:      engine,
		Planner:     bot.NewPlanner(redisClient),
		Broadcaster: wsHub,
	})
	roomSvc := service.NewRoomService(worldRepo, redisClient, cfg.TurnDuration)
	actionSvc := service.NewActionService(worldRepo, redisClient, newsRepo)
	scheduler := service.NewScheduler(turnSvc, worldRepo, redisClient)

	// Timer listener (auto-resolve on expiry)
	timerListener := service.NewTimerListener(redisClient.Raw(), scheduler, cfg.TickInterval)

	// Handlers
	roomHandler := handler.NewRoomHandler(roomSvc, jwtMgr)
	actionHandler := handler.NewActionHandler(actionSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, roomSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)
	limiter := middleware.NewRateLimiter(cfg.APIRatePerSec, cfg.APIBurst)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"database unavailable"}`))
			return
		}
		if err := redisClient.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"redis unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Protected API routes
	api := http.NewServeMux()
	handler.RegisterRoutes(api, roomHandler, actionHandler)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", limiter.Middleware(authMw(api))))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Re-arm Redis timers from Postgres after a restart
	if err := scheduler.RecoverTimers(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover turn timers (non-fatal)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timerListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
