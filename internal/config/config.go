package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	Env                string
	ListenAddr         string
	Port               string
	DatabaseDriver     string
	DatabaseDSN        string
	SessionSecret      string
	GinMode            string
	LogLevel           string
	CORSAllowedOrigins []string
	AIProvider         string
	OpenAIAPIKey       string
	DeepSeekAPIKey     string
	SeedDemoData       bool
}

// LoadEnvFiles 在非生产环境下加载 .env.<GO_ENV>，不存在时回退到 .env。
// 已存在的环境变量不会被覆盖。
func LoadEnvFiles() {
	env := envOr("GO_ENV", "development")
	if env == "production" {
		return
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
		return
	}
	_ = godotenv.Load()
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	LoadEnvFiles()

	port := envOr("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	driver := strings.ToLower(envOr("DATABASE_DRIVER", "sqlite"))

	// sqlite 沿用 DATABASE_PATH，mysql 使用 DATABASE_DSN
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		dsn = envOr("DATABASE_PATH", "carbonlog.db")
	}

	return AppConfig{
		Env:                envOr("GO_ENV", "development"),
		ListenAddr:         listenAddr,
		Port:               port,
		DatabaseDriver:     driver,
		DatabaseDSN:        dsn,
		SessionSecret:      envOr("SESSION_SECRET", "carbonlog-dev-secret"),
		GinMode:            envOr("GIN_MODE", "release"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AIProvider:         strings.ToLower(envOr("AI_PROVIDER", "openai")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		DeepSeekAPIKey:     strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")),
		SeedDemoData:       envBool("SEED_DEMO_DATA", false),
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
