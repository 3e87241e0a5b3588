package main

import (
	"context"
	"os/signal"
	"syscall"

	"qtbridge/internal/app"
	"qtbridge/internal/config"
	"qtbridge/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}
	defer a.Close(context.Background())

	if err := a.Run(ctx); err != nil {
		logger.L().Fatalf("应用退出: %v", err)
	}
	logger.L().Info("Shutdown complete")
}
