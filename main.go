package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/access"
	"github.com/ferhatb/linkstats/internal/auth"
	"github.com/ferhatb/linkstats/internal/db"
	"github.com/ferhatb/linkstats/internal/geo"
	"github.com/ferhatb/linkstats/internal/handler"
	"github.com/ferhatb/linkstats/internal/logger"
	"github.com/ferhatb/linkstats/internal/repo"
	"github.com/ferhatb/linkstats/internal/stats"
	"github.com/ferhatb/linkstats/internal/tracker"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host       string
	Port       string
	DBPath     string
	GeoDBPath  string
	AdminCreds string
	Users      string
	JWTSecret  string
	LogLevel   string
	Debug      bool
}

func newConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Host:       cmp.Or(os.Getenv("HOST"), "localhost"),
		Port:       cmp.Or(os.Getenv("PORT"), "8080"),
		DBPath:     cmp.Or(os.Getenv("DB_PATH"), "linkstats.db"),
		GeoDBPath:  os.Getenv("GEOIP_DB_PATH"),
		AdminCreds: os.Getenv("ADMIN_CREDENTIALS"),
		Users:      os.Getenv("USERS"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		LogLevel:   cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:      os.Getenv("DEBUG") == "1",
	}

	if cfg.AdminCreds == "" {
		cfg.AdminCreds = "admin:admin"
		log.Warn().Msg("using default admin credentials - set ADMIN_CREDENTIALS for production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AdminCreds
		log.Warn().Msg("using ADMIN_CREDENTIALS as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg, nil
}

func main() {
	cfg, err := newConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	if err := logger.Setup(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("failed to configure logger")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	userStore, err := auth.NewUserStore(cfg.AdminCreds, cfg.Users)
	if err != nil {
		return err
	}

	dbInstance, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer dbInstance.Close()

	var resolver geo.Resolver
	if cfg.GeoDBPath != "" {
		maxmind, err := geo.OpenMaxMind(cfg.GeoDBPath)
		if err != nil {
			return err
		}
		defer maxmind.Close()
		resolver = maxmind
	} else {
		log.Warn().Msg("no GEOIP_DB_PATH set - clicks will record without a country")
	}

	e := echo.New()
	defer e.Close()

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	linksRepo := repo.NewLinksRepo(dbInstance)
	tagsRepo := repo.NewTagsRepo(dbInstance)
	clicksRepo := repo.NewClicksRepo(dbInstance)

	recorder := tracker.NewRecorder(clicksRepo, resolver)
	engine := stats.NewEngine(clicksRepo)
	gate := access.NewGate(tagsRepo)

	authenticator := auth.NewAuthenticator(userStore, cfg.JWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)

	e.POST("/login", authHandler.Login)
	e.GET("/logout", authHandler.Logout)

	api := e.Group("/api/v1")
	api.Use(auth.NewAuthMiddleware(authenticator))

	linkHandler := handler.NewLinkHandler(linksRepo, recorder)
	api.POST("/links", linkHandler.CreateLink)

	statsHandler := handler.NewStatsHandler(linksRepo, tagsRepo, engine, gate)
	api.GET("/link/stats", statsHandler.LinkStats)
	api.GET("/tag/stats", statsHandler.TagStats)
	api.GET("/links/stats", statsHandler.LinksStats)
	api.GET("/tag/links", statsHandler.TagLinks)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Parameterized route (must be last)
	e.GET("/:ending", linkHandler.Redirect)

	log.Info().Str("address", cfg.Port).Msg("server starting")

	runServer(ctx, e, cfg.Port)

	return nil
}

func runServer(ctx context.Context, e *echo.Echo, port string) {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + port)
	}()

	<-ctx.Done()

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

// errorHandler maps the error taxonomy to HTTP: every error leaves with a
// stable machine-readable code and a message.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errorCode := string(internal.KindStore)
	message := "internal server error"

	if kind, ok := internal.KindOf(err); ok {
		errorCode = string(kind)
		var appErr *internal.Error
		errors.As(err, &appErr)
		message = appErr.Message

		switch kind {
		case internal.KindValidation:
			code = http.StatusBadRequest
		case internal.KindNotFound:
			code = http.StatusNotFound
		case internal.KindAccessDenied:
			code = http.StatusUnauthorized
		case internal.KindAnalytics:
			code = http.StatusBadRequest
		case internal.KindStore:
			code = http.StatusInternalServerError
			message = "internal server error"
		}
	} else {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			errorCode = http.StatusText(code)
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			}
		}
	}

	log.Error().
		Int("code", code).
		Str("error_code", errorCode).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	_ = c.JSON(code, map[string]any{
		"error": map[string]string{
			"code":    errorCode,
			"message": message,
		},
	})
}
