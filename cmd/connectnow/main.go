package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/resend/resend-go/v2"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/internal/calendar"
	"github.com/Olami1998/connectnow-suite/internal/rest"
	"github.com/Olami1998/connectnow-suite/internal/telegram"
	"github.com/Olami1998/connectnow-suite/pkg/config"
	"github.com/Olami1998/connectnow-suite/pkg/logger"
	"github.com/Olami1998/connectnow-suite/pkg/notifier"
	"github.com/Olami1998/connectnow-suite/pkg/pgstore"
	"github.com/Olami1998/connectnow-suite/pkg/ratelimit"
	"github.com/Olami1998/connectnow-suite/pkg/secret"
	"github.com/Olami1998/connectnow-suite/pkg/service"
	"github.com/Olami1998/connectnow-suite/pkg/worker"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("err loading config: %v", err)
	}
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		log.Panic("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sealer secret.Sealer = secret.Plain{}
	if cfg.TokenEncryptionKey != "" {
		box, err := secret.NewBox(cfg.TokenEncryptionKey)
		if err != nil {
			log.Panic(err)
		}
		sealer = box
	} else {
		log.Warn("TOKEN_ENCRYPTION_KEY is not set, oauth tokens are stored in plaintext")
	}
	store, err := pgstore.NewStore(ctx, log, cfg.PgDSN, sealer)
	if err != nil {
		log.Panic(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("err closing store: %v", err)
		}
	}()
	if err = store.Migrate(migrate.Up); err != nil {
		log.Panic(err)
	}

	var wg sync.WaitGroup
	limiter := newLimiter(ctx, log, cfg, &wg)
	mailer := newMailer(ctx, log, cfg)

	google := calendar.New(log, cfg.GoogleClientID, cfg.GoogleClientSecret)
	calendarSvc := service.NewCalendarService(log, store, google, service.NewRedirectAllowList(cfg.AllowedOrigins))
	scheduleSvc := service.NewScheduleService(log, store, calendarSvc, cfg.AppURL)

	opts := []worker.Option{worker.WithFrom(cfg.MailFrom), worker.WithLookahead(cfg.ReminderLookahead)}
	if cfg.TGToken != "" {
		bot, err := telegram.NewBot(cfg.TGToken)
		if err != nil {
			log.Panic(err)
		}
		tg, err := telegram.New(log, bot, cfg.TGChatID)
		if err != nil {
			log.Panic(err)
		}
		opts = append(opts, worker.WithSink(tg))
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.Run(ctx)
		}()
	}
	reminder := worker.New(log, store, mailer, opts...)
	if cfg.ReminderInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reminder.Loop(ctx, cfg.ReminderInterval)
		}()
	}

	server := rest.NewServer(log, calendarSvc, scheduleSvc, reminder, limiter, rest.Config{
		Address:        cfg.Address,
		Version:        version,
		JWTSecret:      cfg.JWTSecret,
		CronSecret:     cfg.CronSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
		<-sigCh
		log.Info("Received signal, shutting down...")
		cancel()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.Error(err)
			cancel()
		}
	}()
	wg.Wait()
	log.Info("Server stopped")
}

func newLimiter(ctx context.Context, log *logrus.Logger, cfg config.Config, wg *sync.WaitGroup) ratelimit.Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Panicf("err connecting to redis: %v", err)
		}
		log.Infof("using redis rate limiter at %s", cfg.RedisAddr)
		return ratelimit.NewRedis(client, cfg.RateLimit, cfg.RateWindow)
	}
	window := ratelimit.NewWindow(cfg.RateLimit, cfg.RateWindow)
	wg.Add(1)
	go func() {
		defer wg.Done()
		window.RunSweeper(ctx, time.Minute)
	}()
	return window
}

func newMailer(ctx context.Context, log *logrus.Logger, cfg config.Config) worker.Mailer {
	switch cfg.MailProvider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			log.Panic("RESEND_API_KEY is required for the resend mail provider")
		}
		return notifier.NewResend(log, resend.NewClient(cfg.ResendAPIKey))
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Panicf("err loading aws config: %v", err)
		}
		return notifier.NewSES(log, sesv2.NewFromConfig(awsCfg))
	default:
		return notifier.NewDummyNotifier(log)
	}
}
