package app

import (
	"context"
	"fmt"

	"qtbridge/internal/api"
	"qtbridge/internal/commands"
	"qtbridge/internal/config"
	"qtbridge/internal/forward"
	"qtbridge/internal/logger"
	"qtbridge/internal/mongo"
	"qtbridge/internal/qq"
	"qtbridge/internal/qq/napcat"
	"qtbridge/internal/qq/oicq"
	"qtbridge/internal/repository"
	"qtbridge/internal/telegram"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	cfg *config.Config

	MongoDB  *mongo.Client
	QQ       qq.Client
	Telegram *telegram.Bot
	Pairs    *forward.Pairs
	API      *api.Server

	registry *qq.Registry
}

// OICQDriver 持久会话协议驱动的注入点
// 具体实现由构建方在启动前赋值；napcat 模式下可以为 nil
var OICQDriver oicq.Driver

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, registry: qq.NewRegistry()}

	// MongoDB
	mongoClient, err := mongo.NewClient(mongo.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	a.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	db := mongoClient.Database()
	pairRepo := repository.NewPairRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	fwdRepo := repository.NewForwardMultipleRepository(db)
	if err := mongo.EnsureIndexes(ctx, pairRepo, msgRepo, fwdRepo); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("ensure indexes failed: %w", err)
	}

	// QQ 客户端（经注册表创建，重复创建同一实例会拿到同一个客户端）
	client, err := a.registry.Create(ctx, cfg.InstanceID, func(ctx context.Context) (qq.Client, error) {
		return a.createQQClient(ctx)
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init QQ client failed: %w", err)
	}
	a.QQ = client

	// Telegram
	tg, err := telegram.New(ctx, telegram.Config{
		Token:   cfg.TelegramToken,
		OwnerID: cfg.TGOwnerID,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}
	a.Telegram = tg

	// 配对与控制器
	pairs, err := forward.LoadPairs(ctx, cfg.InstanceID, client, pairRepo)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("load pairs failed: %w", err)
	}
	a.Pairs = pairs

	notifier := commands.NewOperatorNotifier(tg, cfg.TGOwnerID)
	service := forward.NewService(cfg.InstanceID, client, tg, msgRepo, fwdRepo, cfg.WebBaseURL)

	// 命令处理器先于转发引擎注册，动作指令可以截住消息
	commands.NewAliveCheckController(client, tg, pairs)
	commands.NewRequestsController(client, tg)
	commands.NewInChatCommandsService(cfg.InstanceID, client, tg, pairs, msgRepo)
	commands.NewHugController(cfg.InstanceID, cfg.InstanceFlags, client, tg, pairs, msgRepo)
	forward.NewController(cfg.InstanceID, cfg.InstanceFlags, client, tg, pairs, service, msgRepo, notifier, nil)

	// HTTP 查询面
	a.API = api.NewServer(pairs, fwdRepo, forward.NewBundleCache(0))

	return a, nil
}

// createQQClient 按配置选择后端
func (a *App) createQQClient(ctx context.Context) (qq.Client, error) {
	qqCfg := a.cfg.QQClient
	switch qqCfg.Type {
	case "napcat":
		return napcat.Create(ctx, napcat.CreateParams{
			ID:    a.cfg.InstanceID,
			WSURL: qqCfg.WSURL,
			OnDisconnect: func(err error) {
				logger.L().Errorf("Gateway connection lost: %v", err)
			},
		})
	case "oicq":
		if OICQDriver == nil {
			return nil, fmt.Errorf("oicq driver is not linked in")
		}
		return oicq.Create(ctx, oicq.CreateParams{
			ID:     a.cfg.InstanceID,
			Driver: OICQDriver,
			Login: oicq.LoginOptions{
				Uin:      qqCfg.Uin,
				Password: qqCfg.Password,
				Platform: qqCfg.Platform,
			},
		})
	default:
		return nil, fmt.Errorf("unknown QQ client type: %s", qqCfg.Type)
	}
}

// Run 启动阻塞式服务，ctx 取消时返回
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.API.Run(a.cfg.ListenAddr)
	}()
	go a.Telegram.Start(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("API server exited: %w", err)
	}
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if c, ok := a.QQ.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			logger.L().Warnf("Close QQ client failed: %v", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
