package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Database struct {
		// Driver is "sqlite3" or "postgres".
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		Topic         string   `yaml:"topic"`
		ConsumerGroup string   `yaml:"consumer_group"`
	} `yaml:"kafka"`

	AI struct {
		Model       string  `yaml:"model"`
		VisionModel string  `yaml:"vision_model"`
		BaseURL     string  `yaml:"base_url"`
		Temperature float64 `yaml:"temperature"`
		// APIKey is taken from the OPENAI_API_KEY environment variable,
		// never from the config file.
		APIKey string `yaml:"-"`
	} `yaml:"ai"`

	Voice struct {
		AgentURL         string `yaml:"agent_url"`
		InputSampleRate  int    `yaml:"input_sample_rate"`
		OutputSampleRate int    `yaml:"output_sample_rate"`
	} `yaml:"voice"`

	Auth struct {
		// JWTSecret is taken from the KIRANA_JWT_SECRET environment variable.
		JWTSecret string `yaml:"-"`
	} `yaml:"auth"`
}

// Load reads the YAML configuration at path and fills secrets from the
// environment. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault returns the default configuration with environment overrides,
// used when no config file is present.
func LoadDefault() *Config {
	_ = godotenv.Load()
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.Env = "development"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090
	cfg.Metrics.Path = "/metrics"
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = "kirana.db"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "inventory-events"
	cfg.Kafka.ConsumerGroup = "kirana-notify"
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.VisionModel = "gpt-4o"
	cfg.AI.Temperature = 0.2
	cfg.Voice.InputSampleRate = 16000
	cfg.Voice.OutputSampleRate = 24000
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Auth.JWTSecret = os.Getenv("KIRANA_JWT_SECRET")

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}
