package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/menta2k/face-cropper/internal/backend"
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "JSON configuration file")
	envFile := flag.String("env", ".env", "dotenv file with FACECROP_* variables (ignored when missing)")
	warm := flag.Bool("warm", false, "load the face detector before accepting requests")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath), *envFile)
	if err != nil {
		log.Fatal(err)
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	fc, err := backend.NewFaceCropper(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	fc.SetLogger(logger)

	if *warm {
		if err := fc.Init(context.Background()); err != nil {
			logger.WithError(err).Warn("detector warm up failed, retrying on first request")
		}
	}

	h := NewHandler(fc)
	h.SetLogger(logger)
	e := newServer(h, cfg.Server.BodyLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		logger.WithField("addr", cfg.Server.ListenAddr).WithField("backend", cfg.Backend.Name).Info("listening")
		if err := e.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

func newServer(h *Handler, bodyLimit string) *echo.Echo {
	e := echo.New()
	e.Logger.SetLevel(log.INFO)
	e.HideBanner = true

	e.Use(middleware.Recover())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}

	h.Register(e)
	return e
}
