package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-finance/pkg/audit"
	"github.com/tendant/simple-finance/pkg/client"
	"github.com/tendant/simple-finance/pkg/config"
	"github.com/tendant/simple-finance/pkg/notification"
	"github.com/tendant/simple-finance/pkg/twofa"
	"github.com/tendant/simple-finance/pkg/twofa/api"
)

type Config struct {
	AppConfig      app.AppConfig
	DatabaseConfig config.DatabaseConfig
	RedisConfig    config.RedisConfig
	EmailConfig    config.EmailConfig
	KafkaConfig    config.KafkaConfig
	TwoFAConfig    config.TwoFAConfig
	JwtConfig      config.JwtConfig
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "err", err)
	}

	logLevel := slog.LevelInfo
	if config.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: logLevel})))
	slog.Info("Starting finance-2fa", "env", config.GetEnvironment())

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed reading config", "err", err)
		os.Exit(1)
	}
	for name, validate := range map[string]func() error{
		"twofa": cfg.TwoFAConfig.Validate,
		"jwt":   cfg.JwtConfig.Validate,
	} {
		if err := validate(); err != nil {
			slog.Error("Invalid configuration", "section", name, "err", err)
			os.Exit(1)
		}
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	repo, cleanup, err := newRepository(cfg)
	if err != nil {
		slog.Error("Failed creating 2fa repository", "persistence", cfg.TwoFAConfig.Persistence, "err", err)
		os.Exit(1)
	}
	defer cleanup()

	var service twofa.TwoFactorService = twofa.NewNoOpTwoFactorManager()
	if cfg.TwoFAConfig.Enabled {
		service = twofa.NewTwoFactorManager(repo,
			twofa.WithIssuer(cfg.TwoFAConfig.Issuer),
			twofa.WithQRSize(cfg.TwoFAConfig.QRSize),
		)
	} else {
		slog.Warn("2fa is disabled, all 2fa endpoints will refuse requests")
	}

	var publisher audit.Publisher = audit.NewLogPublisher(slog.Default())
	if cfg.KafkaConfig.IsConfigured() {
		kafkaPublisher := audit.NewKafkaPublisher(cfg.KafkaConfig.Brokers, cfg.KafkaConfig.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		slog.Info("Publishing audit events to kafka", "brokers", cfg.KafkaConfig.Brokers, "topic", cfg.KafkaConfig.Topic)
	}

	noticeOpts := []notification.NotificationManagerOption{notification.WithTwoFactorTemplates()}
	if cfg.EmailConfig.Enabled {
		noticeOpts = append(noticeOpts, notification.WithSMTP(cfg.EmailConfig.ToSMTPConfig()))
	}
	notices, err := notification.NewNotificationManager(noticeOpts...)
	if err != nil {
		slog.Error("Failed creating notification manager", "err", err)
		os.Exit(1)
	}

	twoFaHandle := api.NewHandle(service, api.NewBcryptPasswordChecker(repo),
		api.WithNoticeSender(notices),
		api.WithAuditPublisher(publisher),
		api.WithMetrics(api.NewMetrics(prometheus.DefaultRegisterer)),
		api.WithIssuer(cfg.TwoFAConfig.Issuer),
	)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.JwtSecret), nil)
	auditMiddleware := audit.NewMiddleware(publisher)

	server.R.Handle("/metrics", promhttp.Handler())
	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(auditMiddleware.AuditAuthMiddleware)
		r.Mount("/api/2fa", api.TwoFaHandler(twoFaHandle))
	})

	server.Run()
}

func newRepository(cfg Config) (twofa.UserTwoFactorRepository, func(), error) {
	repoConfig := twofa.RepositoryConfig{
		RedisKeyPrefix: cfg.RedisConfig.KeyPrefix,
		DataDir:        cfg.TwoFAConfig.DataDir,
	}
	cleanup := func() {}

	switch cfg.TwoFAConfig.Persistence {
	case "postgres":
		if err := cfg.DatabaseConfig.Validate(); err != nil {
			return nil, cleanup, err
		}
		dbConfig := cfg.DatabaseConfig.ToDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, cleanup, err
		}
		repoConfig.Pool = pool
		cleanup = pool.Close
	case "redis":
		if err := cfg.RedisConfig.Validate(); err != nil {
			return nil, cleanup, err
		}
		rdb := redis.NewClient(cfg.RedisConfig.ToOptions())
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			rdb.Close()
			return nil, cleanup, err
		}
		repoConfig.Redis = rdb
		cleanup = func() { rdb.Close() }
	}

	repo, err := twofa.NewUserTwoFactorRepository(cfg.TwoFAConfig.Persistence, repoConfig)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return repo, cleanup, nil
}
