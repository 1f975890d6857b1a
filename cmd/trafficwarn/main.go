package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"trafficwarn/internal/config"
	"trafficwarn/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./trafficwarn.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if cfg.Log.App.Path != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.App.Path,
			MaxSize:    cfg.Log.App.MaxSizeMB,
			MaxBackups: cfg.Log.App.MaxBackups,
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("trafficwarn starting")
	log.Printf("alarm algorithm=%s relay=%s nmea_dest=%s", cfg.Alarm.Algorithm, cfg.Relay.Mode, cfg.NMEA.Dest)

	if cfg.Web.Listen != "" {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, rt.status)
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
	}

	rt.run(ctx)
	log.Printf("trafficwarn stopping")
}
