package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Server struct {
	Port string `mapstructure:"port"`
}

type RestStore struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	TimeoutMs int    `mapstructure:"timeout-ms"`
}

type Store struct {
	// Backend selects the key-value implementation: rest, postgres or memory.
	Backend string    `mapstructure:"backend"`
	Rest    RestStore `mapstructure:"rest"`
}

type Database struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

type Gateway struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	AppURL    string `mapstructure:"app-url"`
	TimeoutMs int    `mapstructure:"timeout-ms"`
}

type Webhook struct {
	Secret        string `mapstructure:"secret"`
	ProviderToken string `mapstructure:"provider-token"`
}

type Code struct {
	Length      int `mapstructure:"length"`
	MaxAttempts int `mapstructure:"max-attempts"`
}

type Messaging struct {
	URL         string `mapstructure:"url"`
	ClientToken string `mapstructure:"client-token"`
	AccessLink  string `mapstructure:"access-link"`
	Secret      string `mapstructure:"secret"`
	TimeoutMs   int    `mapstructure:"timeout-ms"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	PaymentEvents string `mapstructure:"payment-events"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Store     Store     `mapstructure:"store"`
	Database  Database  `mapstructure:"database"`
	Gateway   Gateway   `mapstructure:"gateway"`
	Webhook   Webhook   `mapstructure:"webhook"`
	Code      Code      `mapstructure:"code"`
	Messaging Messaging `mapstructure:"messaging"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Logs      Logs      `mapstructure:"logs"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Secrets are expected from the environment, e.g. WEBHOOK_SECRET,
	// GATEWAY_TOKEN, STORE_REST_TOKEN.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
