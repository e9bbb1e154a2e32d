package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	JWTSecret            string `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTLMin    int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"15"`
	RefreshTokenTTLHours int    `envconfig:"REFRESH_TOKEN_TTL_HOURS" default:"168"`

	// Stripe keys may be left empty when GCPProjectID is set, in which case
	// they are resolved from Secret Manager at startup.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	GCPProjectID        string `envconfig:"GCP_PROJECT_ID"`

	// Avatar storage settings
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"avatars"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
