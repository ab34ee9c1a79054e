// Command camctl runs the camera sensor stack on a Linux host: config,
// HAL, heartbeat and the MQTT bridge, all on one in-process bus.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"camsensor-go/bus"
	"camsensor-go/services/bridge"
	"camsensor-go/services/config"
	"camsensor-go/services/hal"
	"camsensor-go/services/heartbeat"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "board config JSON file (default: embedded board)")
		board    = flag.String("board", "camboard", "embedded board config to use when -config is empty")
		level    = flag.String("log-level", "info", "debug, info, warn or error")
		jsonLogs = flag.Bool("log-json", false, "log as JSON")
		monitor  = flag.Bool("monitor", false, "log every hal/# message")
		queueLen = flag.Int("queue", 16, "per-subscription queue length")
	)
	flag.Parse()

	log := newLogger(*level, *jsonLogs)
	slog.SetDefault(log)

	var raw []byte
	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			log.Error("read config", "path", *cfgPath, "err", err)
			os.Exit(1)
		}
		raw = b
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, config.CtxDeviceKey, *board)

	b := bus.NewBus(*queueLen)

	if *monitor {
		mon := b.NewConnection("monitor")
		sub := mon.Subscribe(bus.T("hal", "#"))
		go func() {
			for m := range sub.Channel() {
				log.Debug("bus", "topic", m.Topic.String(), "retained", m.Retained, "payload", m.Payload)
			}
		}()
	}

	done := make(chan struct{}, 2)
	go func() {
		hal.Run(ctx, b.NewConnection("hal"), log)
		done <- struct{}{}
	}()
	go func() {
		bridge.Start(ctx, b.NewConnection("bridge"), log)
		done <- struct{}{}
	}()
	_ = heartbeat.New(log).Start(ctx, b.NewConnection("heartbeat"))

	// Config last so the services see it live as well as retained.
	config.NewConfigService(raw, log).Start(ctx, b.NewConnection("config"))

	log.Info("camctl running", "board", *board, "config", *cfgPath)
	<-ctx.Done()
	<-done
	<-done
	log.Info("camctl stopped")
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
