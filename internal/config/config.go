package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）

	JWTSecret string // JWT署名シークレット

	GatewayBaseURL string // 決済ゲートウェイのベースURL
	GatewaySecret  string // ゲートウェイのAPIシークレット（webhook署名にも使う）

	RedisAddr    string   // カートサマリキャッシュ
	KafkaBrokers []string // 注文イベントの送り先
	KafkaTopic   string

	Currency    string        // ISO 4217（USDなど）
	TaxRateBP   int64         // 税率（ベーシスポイント、750 = 7.5%）
	ShippingFee int64         // 一律送料（最小通貨単位）
	CartTTL     time.Duration // カートの有効期限
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		GatewayBaseURL: os.Getenv("GATEWAY_BASE_URL"),
		GatewaySecret:  os.Getenv("GATEWAY_SECRET"),

		RedisAddr:    envOr("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   envOr("KAFKA_TOPIC", "order-events"),

		Currency:    envOr("CURRENCY", "USD"),
		TaxRateBP:   envInt64Or("TAX_RATE_BP", 0),
		ShippingFee: envInt64Or("SHIPPING_FEE", 0),
		CartTTL:     time.Duration(envInt64Or("CART_TTL_DAYS", 30)) * 24 * time.Hour,
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if cfg.GatewaySecret == "" {
		return Config{}, fmt.Errorf("GATEWAY_SECRET is required")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64Or(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
