package main

import (
	"context"
	"errors"
	"expvar"
	"io/fs"
	"log"
	"os"
	"runtime"

	"solestore/internal/auth"
	"solestore/internal/chatbot"
	"solestore/internal/db"
	"solestore/internal/domain/orders"
	"solestore/internal/domain/storage"
	"solestore/internal/images"
	"solestore/internal/mailer"
	"solestore/internal/ratelimiter"
	"solestore/internal/recordstore"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := NewLogger(cfg.isDevelopment())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	records, closeRecords, err := db.OpenRecords(ctx, db.StoreConfig{
		Driver:      cfg.store.driver,
		DataDir:     cfg.store.dataDir,
		Addr:        cfg.db.addr,
		MaxConns:    cfg.db.maxConns,
		MaxIdleTime: cfg.db.maxIdleTime,
	}, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeRecords()

	numbers, err := orders.NewOrderNumberGenerator(cfg.orders.numberSalt)
	if err != nil {
		logger.Fatal(err)
	}

	store := storage.NewContainer(records, storage.Options{
		OrderNumbers: numbers,
		Pricing: orders.Pricing{
			FreeShippingThresholdCents: cfg.orders.freeShippingThresholdCents,
			ShippingFeeCents:           cfg.orders.shippingFeeCents,
		},
		LowStockThreshold: cfg.orders.lowStockThreshold,
	})

	// pick up edits made to the data files by other processes
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.store.watch && cfg.store.driver == db.DriverFile {
		if err := recordstore.Watch(cfg.store.dataDir, records.Names(), logger, records.Invalidate, stopWatch); err != nil {
			logger.Fatal(err)
		}
		logger.Infow("watching data directory", "dir", cfg.store.dataDir)
	}

	var mail mailer.Client
	if cfg.mail.smtpHost != "" {
		mail = mailer.NewSMTP(cfg.mail.smtpHost, cfg.mail.smtpPort, cfg.mail.smtpUsername, cfg.mail.smtpPassword, cfg.mail.fromEmail, logger)
	} else {
		logger.Warn("SMTP_HOST is not set, emails will only be logged")
		mail = mailer.NewLogClient(logger)
	}

	var uploader images.Uploader
	if cfg.cloudinary.url != "" {
		cld, err := images.NewCloudinary(cfg.cloudinary.url, cfg.cloudinary.folder)
		if err != nil {
			logger.Fatal(err)
		}
		uploader = cld
	} else {
		logger.Warn("CLOUDINARY_URL is not set, image uploads are disabled")
	}

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
	).WithExpiry(cfg.auth.token.accessTokenExp, cfg.auth.token.refreshTokenExp)

	var limiter ratelimiter.Limiter
	if cfg.rateLimiter.Enabled {
		limiter = ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
	}

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		mailer:        mail,
		authenticator: jwtAuthenticator,
		images:        uploader,
		chatbot: chatbot.New(store.Products, chatbot.Options{
			FreeShippingThresholdCents: cfg.orders.freeShippingThresholdCents,
			ShippingFeeCents:           cfg.orders.shippingFeeCents,
		}),
		rateLimiter: limiter,
	}

	// Metrics collected
	expvar.NewString("version").Set(version)
	expvar.Publish("records", expvar.Func(func() any {
		return records.Stats()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
