package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/sightlab/camera-benchmark-service/classify"
	"github.com/sightlab/camera-benchmark-service/logging"
	"github.com/sightlab/camera-benchmark-service/stream"
)

func main() {
	log := logging.New()
	cfg := LoadConfig(log)

	if cfg.ORTLib != "" {
		ort.SetSharedLibraryPath(cfg.ORTLib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		log.WithError(err).Fatal("failed to initialize ONNX environment")
	}
	defer ort.DestroyEnvironment()

	camera := stream.NewSyntheticCamera(cfg.CameraWidth, cfg.CameraHeight, cfg.CameraFPS)
	devices, err := camera.Devices()
	if err != nil || len(devices) == 0 {
		log.WithError(err).Fatal("no capture device available")
	}
	log.WithField("device", devices[0].Name).Info("using capture device")

	classifier := classify.New(log, cfg.LabelPath)
	hub := NewHub(log)
	app := NewApp(log, cfg, camera, classifier, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Run(ctx)

	srv := &http.Server{
		Handler:      newRouter(app, hub),
		Addr:         cfg.Addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
}
