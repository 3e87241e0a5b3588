package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config 应用程序配置
type Config struct {
	InstanceID    int64  // 实例 ID（多账号部署时区分实例）
	InstanceFlags int64  // 实例级抑制开关位图，与 Pair 的 flags 按位或后生效
	TelegramToken string // Telegram Bot API Token
	TGOwnerID     int64  // Bot 持有者的 Telegram 用户 ID
	MongoURI      string // MongoDB 连接 URI
	MongoDBName   string // MongoDB 数据库名称
	QQClient      QQClientConfig
	ListenAddr    string // HTTP 服务监听地址
	WebBaseURL    string // 对外可访问的基础 URL（合并转发查看链接用）
}

// QQClientConfig QQ 侧客户端配置
type QQClientConfig struct {
	Type     string // "napcat" 或 "oicq"
	WSURL    string // NapCat 网关 WebSocket 地址
	Uin      int64  // oicq 登录账号
	Password string // oicq 登录密码
	Platform int    // oicq 登录协议平台
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "qtbridge"
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDBName:   mongoDBName,
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		WebBaseURL:    strings.TrimRight(os.Getenv("WEB_BASE_URL"), "/"),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	var err error
	if cfg.InstanceID, err = parseInt64Env("INSTANCE_ID", 0); err != nil {
		return nil, err
	}
	if cfg.InstanceFlags, err = parseInt64Env("INSTANCE_FLAGS", 0); err != nil {
		return nil, err
	}
	if cfg.TGOwnerID, err = parseInt64Env("TG_OWNER_ID", 0); err != nil {
		return nil, err
	}

	qqCfg, err := loadQQClientConfig()
	if err != nil {
		return nil, err
	}
	cfg.QQClient = qqCfg

	return cfg, nil
}

func loadQQClientConfig() (QQClientConfig, error) {
	var cfg QQClientConfig

	cfg.Type = strings.TrimSpace(os.Getenv("QQ_CLIENT_TYPE"))
	if cfg.Type == "" {
		cfg.Type = "napcat"
	}

	switch cfg.Type {
	case "napcat":
		cfg.WSURL = strings.TrimSpace(os.Getenv("NAPCAT_WS_URL"))
		if cfg.WSURL == "" {
			return QQClientConfig{}, fmt.Errorf("NAPCAT_WS_URL is required for napcat client")
		}
	case "oicq":
		var err error
		if cfg.Uin, err = parseInt64Env("QQ_UIN", 0); err != nil {
			return QQClientConfig{}, err
		}
		if cfg.Uin == 0 {
			return QQClientConfig{}, fmt.Errorf("QQ_UIN is required for oicq client")
		}
		cfg.Password = os.Getenv("QQ_PASSWORD")
		platformStr := strings.TrimSpace(os.Getenv("QQ_PLATFORM"))
		if platformStr != "" {
			platform, err := strconv.Atoi(platformStr)
			if err != nil {
				return QQClientConfig{}, fmt.Errorf("failed to parse QQ_PLATFORM: %w", err)
			}
			cfg.Platform = platform
		}
	default:
		return QQClientConfig{}, fmt.Errorf("unknown QQ_CLIENT_TYPE: %s", cfg.Type)
	}

	return cfg, nil
}

// parseInt64Env 解析 int64 环境变量，未设置时返回默认值
func parseInt64Env(name string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return value, nil
}
