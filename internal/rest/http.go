package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/ratelimit"
	"github.com/Olami1998/connectnow-suite/pkg/service"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Address        string
	Version        string
	JWTSecret      string
	CronSecret     string
	AllowedOrigins []string
}

type Server struct {
	log        *logrus.Entry
	calendar   CalendarApp
	schedule   ScheduleApp
	reminder   Reminder
	limiter    ratelimit.Limiter
	origins    service.RedirectAllowList
	jwtSecret  []byte
	cronSecret string
	address    string
	version    string
}

func NewServer(log *logrus.Logger, calendar CalendarApp, schedule ScheduleApp, reminder Reminder, limiter ratelimit.Limiter, cfg Config) *Server {
	return &Server{
		log:        log.WithField("component", "rest"),
		calendar:   calendar,
		schedule:   schedule,
		reminder:   reminder,
		limiter:    limiter,
		origins:    service.NewRedirectAllowList(cfg.AllowedOrigins),
		jwtSecret:  []byte(cfg.JWTSecret),
		cronSecret: cfg.CronSecret,
		address:    cfg.Address,
		version:    cfg.Version,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics)
	r.Get("/version", s.versionHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/functions/v1", func(r chi.Router) {
		r.Route("/google-calendar", func(r chi.Router) {
			r.Use(s.cors)
			r.With(s.jwtAuth, s.rateLimit).Post("/", s.calendarHandler)
		})
		// called by the scheduler only, no browser access
		r.Post("/send-reminder", s.reminderHandler)
	})
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Use(s.cors)
			r.Use(s.jwtAuth)
			r.Use(s.rateLimit)
			r.Get("/meetings", s.listMeetingsHandler)
			r.Post("/meetings", s.createMeetingHandler)
			r.Delete("/meetings/{id}", s.deleteMeetingHandler)
			r.Get("/notifications", s.listNotificationsHandler)
			r.Post("/notifications/read-all", s.readAllNotificationsHandler)
			r.Post("/notifications/{id}/read", s.readNotificationHandler)
		})
	})
	return r
}

// Run serves until ctx is done and then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during shutdown: %v", err)
		}
	}()
	s.log.Infof("starting http server on %s", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("err serving http: %w", err)
	}
	return nil
}
