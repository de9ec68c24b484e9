package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string
	MigrationsDir    string // file://migrations

	JWTSecret string // JWT署名シークレット
	GoEnv     string // dev/prod

	RedisAddr        string
	KafkaBrokers     []string
	OrderEventsTopic string

	// 決済ゲートウェイ
	PaymentBaseURL       string
	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string
	PaymentTimeout       time.Duration
	Currency             currency.Unit

	// 送料
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal

	CartMaxRetries        uint64
	CheckoutAbandonAfter  time.Duration
	CheckoutSweepInterval time.Duration
}

// Loadは環境変数（.envがあればそれも）から設定を読む
func Load() (Config, error) {
	// .envは無くてもよい
	_ = godotenv.Load()

	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		PostgresUser:         getenv("POSTGRES_USER", "postgres"),
		PostgresPassword:     getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:           getenv("POSTGRES_DB", "app"),
		PostgresHost:         getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:      getenv("POSTGRES_SSLMODE", "disable"),
		MigrationsDir:        getenv("MIGRATIONS_DIR", "file://migrations"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		GoEnv:                getenv("GO_ENV", "dev"),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
		OrderEventsTopic:     getenv("ORDER_EVENTS_TOPIC", "order-events"),
		PaymentBaseURL:       getenv("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		PaymentKeyID:         os.Getenv("PAYMENT_KEY_ID"),
		PaymentKeySecret:     os.Getenv("PAYMENT_KEY_SECRET"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
	}

	var err error
	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.PaymentTimeout, err = durationDefault("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutAbandonAfter, err = durationDefault("CHECKOUT_ABANDON_AFTER", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutSweepInterval, err = durationDefault("CHECKOUT_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.FreeShippingThreshold, err = decimalDefault("FREE_SHIPPING_THRESHOLD", "1000"); err != nil {
		return Config{}, err
	}
	if cfg.FlatShippingFee, err = decimalDefault("FLAT_SHIPPING_FEE", "100"); err != nil {
		return Config{}, err
	}
	retries, err := atoiDefault("CART_MAX_RETRIES", 4)
	if err != nil {
		return Config{}, err
	}
	if retries < 0 {
		return Config{}, fmt.Errorf("CART_MAX_RETRIES must not be negative")
	}
	cfg.CartMaxRetries = uint64(retries)

	cfg.Currency, err = currency.ParseISO(getenv("CURRENCY", "INR"))
	if err != nil {
		return Config{}, fmt.Errorf("CURRENCY is not valid: %w", err)
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentKeyID == "" {
		return Config{}, fmt.Errorf("PAYMENT_KEY_ID is required")
	}
	if cfg.PaymentKeySecret == "" {
		return Config{}, fmt.Errorf("PAYMENT_KEY_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return Config{}, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.FlatShippingFee.IsNegative() || cfg.FreeShippingThreshold.IsNegative() {
		return Config{}, fmt.Errorf("shipping settings must not be negative")
	}

	return cfg, nil
}

// PostgresDSN はgorm用のDSN
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// ListenAddr は ":8080" 形式に揃える
func (c Config) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func decimalDefault(key string, def string) (decimal.Decimal, error) {
	v := getenv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
