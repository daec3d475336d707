package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTSecret string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	// External automation runner.
	RunnerEndpoint   string
	RunnerAPIKey     string
	RunnerTimeoutSec int

	// Inbound webhook verification and throttling.
	WebhookSecret        string
	WebhookRateLimit     int
	WebhookRateWindowSec int

	// Executions still Pending/Processing after this window read as timed out.
	ExecutionSLAMin int

	// eventType -> external workflow id, e.g. "CampaignPublished=wf-a1,ContentApproved=wf-b2"
	WorkflowMap map[string]string

	// Optional S3 archive for terminal callback payloads.
	ArchiveBucket    string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveEndpoint  string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "marketpulse"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		RunnerEndpoint:   getEnv("RUNNER_ENDPOINT", "http://localhost:5678"),
		RunnerAPIKey:     getEnv("RUNNER_API_KEY", ""),
		RunnerTimeoutSec: getEnvAsInt("RUNNER_TIMEOUT_SEC", 10),

		WebhookSecret:        getEnv("WEBHOOK_SECRET", ""),
		WebhookRateLimit:     getEnvAsInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindowSec: getEnvAsInt("WEBHOOK_RATE_WINDOW_SEC", 60),

		ExecutionSLAMin: getEnvAsInt("EXECUTION_SLA_MIN", 30),

		WorkflowMap: parseWorkflowMap(getEnv("WORKFLOW_MAP", "")),

		ArchiveBucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveRegion:    getEnv("ARCHIVE_S3_REGION", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		ArchiveEndpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
	}
}

func (c *Config) RunnerTimeout() time.Duration {
	return time.Duration(c.RunnerTimeoutSec) * time.Second
}

func (c *Config) ExecutionSLAWindow() time.Duration {
	return time.Duration(c.ExecutionSLAMin) * time.Minute
}

func (c *Config) WebhookRateWindow() time.Duration {
	return time.Duration(c.WebhookRateWindowSec) * time.Second
}

func parseWorkflowMap(raw string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			log.Printf("Skipping malformed WORKFLOW_MAP entry: %q", pair)
			continue
		}
		m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return m
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
