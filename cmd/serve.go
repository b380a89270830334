package cmd

import (
	"database/sql"
	"net"
	"time"

	"github.com/anotherme-social/identity-service/app/controller"
	"github.com/anotherme-social/identity-service/app/middleware"
	"github.com/anotherme-social/identity-service/app/ratelimit"
	"github.com/anotherme-social/identity-service/app/repository"
	"github.com/anotherme-social/identity-service/app/service"
	"github.com/anotherme-social/identity-service/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server for the identity service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	resetTokenRepo := repository.NewTokenRepository(db, repository.PasswordResetTokensTable)
	verifyTokenRepo := repository.NewTokenRepository(db, repository.EmailVerificationTokensTable)

	issuer := service.NewTokenIssuer(cfg, service.NewStaticKeyProvider(cfg.JWTSecret))

	dispatcher := service.NewEmailDispatcher(service.NewSMTPMailer(cfg.SMTP), cfg.EmailQueueSize, cfg.EmailSendRetries)
	dispatcher.Start()
	defer dispatcher.Shutdown()

	limits := ratelimit.NewRegistry(cfg.RateLimits)
	limits.StartCleanup(5 * time.Minute)
	defer limits.Stop()

	authService := service.NewAuthService(db, userRepo, resetTokenRepo, verifyTokenRepo, issuer, dispatcher, cfg)

	startHTTPServer(cfg, authService, limits)
}

func configureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func startHTTPServer(cfg *config.Config, authService *service.AuthService, limits *ratelimit.Registry) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(authService)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimits := middleware.NewRateLimitMiddleware(limits)

	auth := e.Group("/auth")
	auth.POST("/register", authController.Register, rateLimits.Limit(ratelimit.BucketRegister))
	auth.POST("/login", authController.Login, rateLimits.Limit(ratelimit.BucketLogin))
	auth.POST("/forgot-password", authController.ForgotPassword, rateLimits.Limit(ratelimit.BucketForgotPassword))
	auth.POST("/reset-password", authController.ResetPassword)
	auth.POST("/verify-email", authController.VerifyEmail)
	auth.POST("/resend-verification", authController.ResendVerification, rateLimits.Limit(ratelimit.BucketResendVerification))

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", authController.Logout)
	authProtected.GET("/me", authController.Me)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
