package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/config"
	"github.com/AnshRaj112/moodiary-backend/internal/database"
	"github.com/AnshRaj112/moodiary-backend/internal/handlers"
	"github.com/AnshRaj112/moodiary-backend/internal/logger"
	"github.com/AnshRaj112/moodiary-backend/internal/routes"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
	"github.com/AnshRaj112/moodiary-backend/internal/store"
	"github.com/AnshRaj112/moodiary-backend/internal/validation"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if err := logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	lg := logger.Logger
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		lg.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.DisconnectPostgres()

	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		lg.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer database.DisconnectRedis()

	var st store.Store
	if cfg.UsesMemoryStore() {
		lg.Warn("using in-memory entry store, entries are lost on restart")
		st = store.NewMemoryStore(cfg.StoreMaxTxAttempts)
	} else {
		if err := database.Connect(cfg.MongoURI, cfg.MongoDatabase); err != nil {
			lg.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer database.Disconnect()
		st = store.NewMongoStore(database.Client, database.DB, cfg.StoreMaxTxAttempts)
	}

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := st.EnsureIndexes(idxCtx); err != nil {
		lg.Warn("failed to ensure MongoDB indexes", zap.Error(err))
	}
	cancel()

	var uploads *services.UploadService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		storage, err := services.NewCloudinaryStorage(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			lg.Warn("failed to initialize Cloudinary, uploads disabled", zap.Error(err))
		} else {
			uploads = services.NewUploadService(storage)
		}
	} else {
		lg.Warn("Cloudinary credentials not found, uploads disabled")
	}

	sessions := services.NewSessionStore(database.RedisClient, cfg.SessionTTL)
	profiles := services.NewProfileService(st)
	entries := services.NewEntryService(st, validation.New(time.Now), services.NewRedisMonthCache(database.RedisClient))
	quotes := services.NewQuoteService(st, services.NewRedisCache(database.RedisClient, time.Hour))
	dashboard := services.NewDashboardService(profiles, entries, quotes)

	hub := services.NewHub(database.RedisClient, lg)
	go hub.Run(ctx)

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Log:      lg,
		Redis:    database.RedisClient,
		Sessions: sessions,

		Auth:      &handlers.AuthHandler{Accounts: services.NewAccountService(database.PostgresDB), Sessions: sessions, Profiles: profiles, Log: lg},
		Me:        &handlers.MeHandler{Profiles: profiles, Log: lg},
		Entries:   &handlers.EntryHandler{Entries: entries, Events: hub, Log: lg},
		Uploads:   &handlers.UploadHandler{Uploads: uploads, Log: lg},
		Quotes:    &handlers.QuoteHandler{Quotes: quotes, Log: lg},
		Dashboard: &handlers.DashboardHandler{Dashboard: dashboard, Log: lg},
		Events:    &handlers.EventsHandler{Hub: hub, Sessions: sessions, Log: lg},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("moodiary backend running", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
