package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"solestore/internal/db"
	"solestore/internal/ratelimiter"
)

type config struct {
	addr        string
	env         string
	frontendURL string
	store       storeConfig
	db          dbConfig
	auth        authConfig
	mail        mailConfig
	cloudinary  cloudinaryConfig
	orders      ordersConfig
	rateLimiter ratelimiter.Config
}

type storeConfig struct {
	driver  string // file | postgres
	dataDir string
	watch   bool
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
	aud             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	smtpHost     string
	smtpPort     int
	smtpUsername string
	smtpPassword string
	fromEmail    string
}

type cloudinaryConfig struct {
	url    string
	folder string
}

type ordersConfig struct {
	numberSalt                 string
	freeShippingThresholdCents int64
	shippingFeeCents           int64
	lowStockThreshold          int
}

func (c config) isDevelopment() bool { return c.env == "development" }

// loadConfig reads the process environment. Unset values fall back to
// defaults suitable for local development.
func loadConfig() (config, error) {
	var err error
	cfg := config{
		addr:        getString("ADDR", ":8080"),
		env:         getString("ENV", "development"),
		frontendURL: getString("FRONTEND_URL", "http://localhost:5173"),
		store: storeConfig{
			driver:  strings.ToLower(getString("STORE_DRIVER", db.DriverFile)),
			dataDir: getString("DATA_DIR", "./data"),
		},
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxIdleTime: getString("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret:        os.Getenv("AUTH_TOKEN_SECRET"),
				refreshSecret: os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				iss:           "solestore",
				aud:           "solestore",
			},
		},
		mail: mailConfig{
			smtpHost:     os.Getenv("SMTP_HOST"),
			smtpUsername: os.Getenv("SMTP_USERNAME"),
			smtpPassword: os.Getenv("SMTP_PASSWORD"),
			fromEmail:    getString("MAIL_FROM", "orders@solestore.example"),
		},
		cloudinary: cloudinaryConfig{
			url:    os.Getenv("CLOUDINARY_URL"),
			folder: getString("CLOUDINARY_FOLDER", "solestore/products"),
		},
		orders: ordersConfig{
			numberSalt: getString("ORDER_NUMBER_SALT", "solestore"),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	if cfg.store.watch, err = getBool("DATA_WATCH", false); err != nil {
		return cfg, err
	}
	if cfg.db.maxConns, err = getInt("DB_MAX_CONNS", 10); err != nil {
		return cfg, err
	}
	if cfg.mail.smtpPort, err = getInt("SMTP_PORT", 587); err != nil {
		return cfg, err
	}
	if cfg.auth.token.accessTokenExp, err = getDuration("AUTH_TOKEN_EXP", 0); err != nil {
		return cfg, err
	}
	if cfg.auth.token.refreshTokenExp, err = getDuration("AUTH_REFRESH_TOKEN_EXP", 0); err != nil {
		return cfg, err
	}
	if cfg.orders.freeShippingThresholdCents, err = getInt64("FREE_SHIPPING_THRESHOLD_CENTS", 10000); err != nil {
		return cfg, err
	}
	if cfg.orders.shippingFeeCents, err = getInt64("SHIPPING_FEE_CENTS", 799); err != nil {
		return cfg, err
	}
	if cfg.orders.lowStockThreshold, err = getInt("LOW_STOCK_THRESHOLD", 5); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c config) validate() error {
	switch c.store.driver {
	case db.DriverFile:
		if c.store.dataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file store")
		}
	case db.DriverPostgres:
		if c.db.addr == "" {
			return fmt.Errorf("DB_ADDR is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.store.driver)
	}
	if c.auth.token.secret == "" || c.auth.token.refreshSecret == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET and AUTH_TOKEN_REFRESH_SECRET must be set")
	}
	if c.auth.token.secret == c.auth.token.refreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	return nil
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 20
	defaultEnabled := true

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil && parsedVal > 0 {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            time.Minute,
		Enabled:              enabled,
	}
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val := getString(key, "")
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	val := getString(key, "")
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val := getString(key, "")
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := getString(key, "")
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}
