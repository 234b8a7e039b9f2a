package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Mpesa      MpesaConfig
	Checkout   CheckoutConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	Env          string        `envconfig:"ENV" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	DSN             string        `envconfig:"DB_DSN" default:"duka:duka@tcp(localhost:3306)/duka?charset=utf8mb4&parseTime=True&loc=Local"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	AccessSecret  string        `envconfig:"JWT_ACCESS_SECRET" default:"change-me-in-production"`
	RefreshSecret string        `envconfig:"JWT_REFRESH_SECRET" default:"change-me-refresh"`
	AccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	RefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"168h"`
	Issuer        string        `envconfig:"JWT_ISSUER" default:"duka"`
}

type CloudinaryConfig struct {
	CloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	APISecret string `envconfig:"CLOUDINARY_API_SECRET"`
}

// MpesaConfig covers deployment-level M-Pesa wiring. Provider credentials
// (consumer key/secret, passkey, short code) live in the site settings row so
// admins can rotate them without a restart.
type MpesaConfig struct {
	// WebhookBaseURL is the public base of this server; the Daraja callback
	// URL is WebhookBaseURL + /api/v1/webhooks/mpesa.
	WebhookBaseURL string        `envconfig:"MPESA_WEBHOOK_BASE_URL" default:"https://shop.example.com"`
	HTTPTimeout    time.Duration `envconfig:"MPESA_HTTP_TIMEOUT" default:"30s"`
}

type CheckoutConfig struct {
	// USDToKES is a fixed illustrative rate; real deployments should plug in
	// a live rate source.
	USDToKES    float64       `envconfig:"CHECKOUT_USD_TO_KES" default:"130"`
	OrderExpiry time.Duration `envconfig:"CHECKOUT_ORDER_EXPIRY" default:"30m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DUKA", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
