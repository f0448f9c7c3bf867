package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-grades/internal/api/http"
	auth "github.com/mind-engage/mindengage-grades/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grades/internal/config"
	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/exam"
	"github.com/mind-engage/mindengage-grades/internal/gradebook"
	"github.com/mind-engage/mindengage-grades/internal/grading"
	"github.com/mind-engage/mindengage-grades/internal/syncx"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()
	defer glog.Flush()

	if err := config.LoadDotEnv(*envFile); err != nil {
		glog.Fatalf("env: %v", err)
	}
	cfg := config.FromEnv()

	scale, err := config.LoadScale(cfg.GradeScaleFile)
	if err != nil {
		glog.Fatalf("grade scale: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		glog.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	exams := exam.NewSQLStore(dbh)
	machine := exam.NewMachine(exams, exam.WithEvents(events))
	courses := gradebook.NewSQLStore(dbh)
	grades := gradebook.New(courses, gradebook.AttemptResults{Store: exams}, courses, courses,
		gradebook.WithScale(scale),
		gradebook.WithAggregator(grading.Aggregator{UniformCredits: cfg.UniformCredits}),
		gradebook.WithConcurrency(cfg.BatchConcurrency),
		gradebook.WithParticipation(courses),
		gradebook.WithCatalog(courses),
		gradebook.WithEvents(events),
	)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)
	users := auth.NewUserStore(dbh)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, auth.Admin{Username: cfg.AdminUser, PassHash: cfg.AdminPassHash}, users))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(users, cfg.Mode == config.ModeOffline))
		api.Mount(pr, api.Deps{
			Machine: machine,
			Exams:   exams,
			Grades:  grades,
			Records: courses,
			Courses: courses,
			Users:   users,
			Events:  events,
		})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		glog.Infof("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		glog.Infof("shutting down")
		return srv.Shutdown(shutCtx)
	})
	if err := g.Wait(); err != nil {
		glog.Errorf("server: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
