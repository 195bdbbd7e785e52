package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbot/api"
	"gridbot/config"
	"gridbot/engine"
	"gridbot/exchange"
	"gridbot/logger"
	"gridbot/market"
	"gridbot/notify"
)

func main() {
	strategiesPath := flag.String("config", "config.json", "path to the strategies file")
	flag.Parse()

	if err := config.Init(); err != nil {
		logger.Fatalf("config: %v", err)
	}
	cfg := config.Get()
	logger.Init(cfg.LogLevel)

	strategies, err := config.LoadStrategies(*strategiesPath)
	if err != nil {
		logger.Fatalf("strategies: %v", err)
	}
	logger.WithFields(logger.Fields{
		"strategies": len(strategies),
		"file":       *strategiesPath,
		"shutdown":   cfg.ShutdownMode,
	}).Info("strategies loaded")

	gateway := exchange.NewGateway(cfg.APIKey, cfg.APISecret, cfg.BaseURL)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warnf("telegram disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	eng := engine.New(gateway, notifier, strategies, engine.Options{
		CheckInterval:  cfg.CheckInterval,
		ResyncInterval: cfg.ResyncInterval,
		ShutdownMode:   cfg.ShutdownMode,
	})

	feed := market.NewFeed(cfg.WSURL)
	feed.Subscribe(eng.OnPrice)
	feed.Start()
	eng.Start()

	server := api.NewServer(eng, feed, cfg.APIServerPort)
	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("api server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received %s, shutting down", sig)

	// Stop intake first, then the engine (which may flatten), then HTTP.
	feed.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	eng.Stop(ctx)
	if err := server.Shutdown(); err != nil {
		logger.Warnf("api shutdown: %v", err)
	}
	logger.Info("bye")
}
