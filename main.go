package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/catdesk/backend/internal/api"
	"github.com/catdesk/backend/internal/auth"
	"github.com/catdesk/backend/internal/config"
	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/job"
	"github.com/catdesk/backend/internal/logging"
	"github.com/catdesk/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logging.For("main")

	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	log.Infof("Admin user ensured: %s", cfg.AdminUsername)

	files, err := storage.NewStore(cfg.SourcePath, cfg.ExportPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	hub := events.NewHub(nil)
	svc := editor.New(database, files, hub, editor.Options{
		DocxStrategy:  cfg.DocxStrategy,
		MaxImageWidth: cfg.DocxMaxWidth,
	})

	queue := job.NewJobQueue(database.DB())
	svc.RegisterJobs(queue)
	queue.OnUpdate(func(j *job.Job) {
		hub.Publish(events.Event{Type: events.JobUpdated, ProjectID: j.ProjectID, Data: j})
	})
	queue.Start()
	janitor, err := job.StartJanitor(queue, cfg.JanitorSchedule, cfg.JobRetention, svc.CleanupJob)
	if err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	router := api.NewRouter(api.Deps{
		DB:     database,
		JWT:    jwtService,
		Config: cfg,
		Editor: svc,
		Jobs:   queue,
		Hub:    hub,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	log.WithFields(logrus.Fields{"addr": srv.Addr, "data": cfg.DataPath}).Info("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}

	<-janitor.Stop().Done()
	queue.Stop()
	log.Info("Stopped")
}
