package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Auth     AuthConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicOrder    string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// BusinessConfig holds the pricing and lifecycle policy knobs. Loyalty values
// only seed the settings row; afterwards they change through the registry.
type BusinessConfig struct {
	VATRate              decimal.Decimal
	MinCartValue         decimal.Decimal
	CouponPolicy         string
	RestoreStockOnCancel bool
	DeliveryWindow       time.Duration
	LoyaltyMinOrders     int
	LoyaltyRate          decimal.Decimal
	IdempotencyTTL       time.Duration
}

// Coupon policies
const (
	CouponPolicySoft   = "soft"
	CouponPolicyStrict = "strict"
)

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	windowHours, _ := strconv.Atoi(getEnv("DELIVERY_WINDOW_HOURS", "48"))
	loyaltyMin, _ := strconv.Atoi(getEnv("LOYALTY_MIN_ORDERS", "5"))
	restore, _ := strconv.ParseBool(getEnv("RESTORE_STOCK_ON_CANCEL", "false"))
	tokenTTL, err := time.ParseDuration(getEnv("JWT_TTL", "12h"))
	if err != nil {
		tokenTTL = 12 * time.Hour
	}
	idemTTL, err := time.ParseDuration(getEnv("CHECKOUT_IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		idemTTL = 24 * time.Hour
	}

	policy := strings.ToLower(getEnv("COUPON_POLICY", CouponPolicySoft))
	if policy != CouponPolicyStrict {
		policy = CouponPolicySoft
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "mysql"),
			URL:    getEnv("DATABASE_URL", "grocer:secret@tcp(localhost:3306)/grocery?parseTime=true&clientFoundRows=true"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			TopicOrder:    getEnv("KAFKA_TOPIC_ORDER_EVENTS", "grocery-order-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "grocery-sales-ledger"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  tokenTTL,
		},
		Business: BusinessConfig{
			VATRate:              getDecimal("VAT_RATE", "0.10"),
			MinCartValue:         getDecimal("MIN_CART_VALUE", "0"),
			CouponPolicy:         policy,
			RestoreStockOnCancel: restore,
			DeliveryWindow:       time.Duration(windowHours) * time.Hour,
			LoyaltyMinOrders:     loyaltyMin,
			LoyaltyRate:          getDecimal("LOYALTY_RATE", "10"),
			IdempotencyTTL:       idemTTL,
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, db=%s", cfg.Server.Env, cfg.Server.Port, cfg.Database.Driver)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDecimal(key, defaultVal string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, defaultVal))
	if err != nil {
		log.Printf("Invalid %s, using default %s", key, defaultVal)
		return decimal.RequireFromString(defaultVal)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
