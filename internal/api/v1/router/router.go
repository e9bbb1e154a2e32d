package router

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *sql.DB, error) {
	// Open DB connection (connection pooling)
	dsn := cfg.DBConnectionString
	// In development, ensure SSL is disabled for local testing. In
	// production the connection string carries the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// Resolve Stripe secrets from Secret Manager when not set via env.
	if cfg.GCPProjectID != "" && (cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "") {
		if err := resolveStripeSecrets(context.Background(), cfg); err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("Stripe secrets loaded from Secret Manager")
	}

	// Initialize S3 client for avatar storage
	s3Config, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	})

	validate := validator.New(validator.WithRequiredStructEnabled())

	// Repositories, services, handlers
	userRepo := repository.NewUserRepo(db)
	subRepo := repository.NewSubscriptionRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	gateway := service.NewStripeGateway(cfg)

	authSvc := service.NewAuthService(cfg, userRepo, subRepo, logger)
	userSvc := service.NewUserService(userRepo, s3Client, cfg.S3Bucket)
	paymentSvc := service.NewPaymentService(gateway, userRepo, subRepo, paymentRepo, logger)

	authHandler := handler.NewAuthHandler(authSvc, validate, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	// Mount API v1 routes under /v1
	apiV1Mux := http.NewServeMux()
	authHandler.RegisterRoutes(apiV1Mux)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	paymentHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), db, nil
}

func resolveStripeSecrets(ctx context.Context, cfg *config.Config) error {
	sm, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
	if err != nil {
		return err
	}
	defer sm.Close()

	if cfg.StripeSecretKey == "" {
		if cfg.StripeSecretKey, err = sm.GetSecret(ctx, "stripe-secret-key"); err != nil {
			return err
		}
	}
	if cfg.StripeWebhookSecret == "" {
		if cfg.StripeWebhookSecret, err = sm.GetSecret(ctx, "stripe-webhook-secret"); err != nil {
			return err
		}
	}
	return nil
}
