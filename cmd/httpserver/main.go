// Command httpserver runs the API against the in-memory store with emails logged instead of
// sent. It is meant for local front end development.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/internal/calendar"
	"github.com/Olami1998/connectnow-suite/internal/rest"
	"github.com/Olami1998/connectnow-suite/pkg/config"
	"github.com/Olami1998/connectnow-suite/pkg/logger"
	"github.com/Olami1998/connectnow-suite/pkg/memstore"
	"github.com/Olami1998/connectnow-suite/pkg/notifier"
	"github.com/Olami1998/connectnow-suite/pkg/ratelimit"
	"github.com/Olami1998/connectnow-suite/pkg/service"
	"github.com/Olami1998/connectnow-suite/pkg/worker"
)

const version = "0.1.0-dev"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("err loading config: %v", err)
	}
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, authenticated routes will answer 500")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memstore.New()
	dummy := notifier.NewDummyNotifier(log)
	google := calendar.New(log, cfg.GoogleClientID, cfg.GoogleClientSecret)
	calendarSvc := service.NewCalendarService(log, store, google, service.NewRedirectAllowList(cfg.AllowedOrigins))
	scheduleSvc := service.NewScheduleService(log, store, calendarSvc, cfg.AppURL)
	reminder := worker.New(log, store, dummy, worker.WithFrom(cfg.MailFrom), worker.WithLookahead(cfg.ReminderLookahead))
	if cfg.ReminderInterval > 0 {
		go reminder.Loop(ctx, cfg.ReminderInterval)
	}

	server := rest.NewServer(log, calendarSvc, scheduleSvc, reminder, ratelimit.NewWindow(cfg.RateLimit, cfg.RateWindow), rest.Config{
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
	if err = server.Run(ctx); err != nil {
		log.Panic(err)
	}
	log.Info("Server stopped")
}
