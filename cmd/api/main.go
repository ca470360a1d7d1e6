package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/background"
	"github.com/BradenHooton/mriscan/internal/config"
	"github.com/BradenHooton/mriscan/internal/database"
	"github.com/BradenHooton/mriscan/internal/handlers"
	middlewareCustom "github.com/BradenHooton/mriscan/internal/middleware"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/repositories"
	"github.com/BradenHooton/mriscan/internal/routes"
	"github.com/BradenHooton/mriscan/internal/services"
	"github.com/BradenHooton/mriscan/internal/storage"
	pkgauth "github.com/BradenHooton/mriscan/pkg/auth"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	proxyTrust, err := pkghttp.NewProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	scanRepo := repositories.NewScanRepository(db)
	modelRepo := repositories.NewModelRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	codec := auth.NewSessionCodec(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	emailService, err := newEmailService(cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// The signer stays an untyped nil when uploads are off so the service
	// can tell the feature is disabled.
	var uploads services.UploadSigner
	if cfg.Storage.UploadsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		uploader, err := storage.NewS3Uploader(ctx, cfg.Storage)
		cancel()
		if err != nil {
			logger.Error("failed to initialize upload storage", slog.Any("error", err))
			os.Exit(1)
		}
		uploads = uploader
		logger.Info("scan uploads enabled", slog.String("bucket", cfg.Storage.Bucket))
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, hasher, codec, timingDelay, cfg.Auth.RevokeOnPasswordReset, logger, auditLogger)
	resetService := services.NewPasswordResetService(userRepo, hasher, emailService, services.PasswordResetConfig{
		TokenTTL:    cfg.Auth.ResetTokenTTL,
		SendTimeout: cfg.Email.SendTimeout,
	}, logger, auditLogger)
	userService := services.NewUserService(userRepo, logger, auditLogger)
	scanService := services.NewScanService(scanRepo, modelRepo, uploads, logger, auditLogger)
	modelService := services.NewModelService(modelRepo, logger, auditLogger)
	adminService := services.NewAdminService(userRepo, scanRepo, logger)

	// Bootstrap first admin user and the model catalog if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, cfg.Bootstrap, userRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	if cfg.Bootstrap.SeedModels {
		if _, err := modelService.SeedDefaults(ctx); err != nil {
			logger.Error("failed to seed models", slog.Any("error", err))
		}
	}
	cancel()

	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: "strict",
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, proxyTrust))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, resetService, cookieConfig, proxyTrust),
		Users:  handlers.NewUserHandler(userService),
		Scans:  handlers.NewScanHandler(scanService),
		Models: handlers.NewModelHandler(modelService),
		Admin:  handlers.NewAdminHandler(adminService),
	}, authService)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(userRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Reset emails already accepted are bounded by the send timeout
	resetService.Wait()

	logger.Info("server stopped gracefully")
}

// newEmailService picks the reset-mail transport named by EMAIL_PROVIDER.
func newEmailService(cfg config.EmailConfig, logger *slog.Logger) (services.EmailService, error) {
	switch cfg.Provider {
	case "ses":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewAWSSESEmailService(ctx, cfg.AWSRegion, cfg.FromAddress, cfg.ResetURLBase, logger)
	case "smtp":
		return services.NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromAddress, cfg.ResetURLBase, logger), nil
	case "log":
		logger.Warn("EMAIL_PROVIDER=log: reset links are written to the log, not mailed")
		return services.NewLogEmailService(cfg.ResetURLBase, logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, cfg config.BootstrapConfig, userRepo *repositories.UserRepository, hasher *pkgauth.Hasher, logger *slog.Logger) error {
	adminEmail := strings.TrimSpace(cfg.AdminEmail)
	if adminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := hasher.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully", pkglogger.EmailAttr(adminEmail))
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
