package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Mail     MailConfig     `json:"mail"`
}

type ServerConfig struct {
	Addr              string `json:"addr"`
	RateLimitStrategy string `json:"rate_limit_strategy"` // fixed_window(默认), sliding_window
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// Redis 连接配置
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type KafkaConfig struct {
	Enabled       bool     `json:"enabled"`
	Brokers       []string `json:"brokers"`
	Topic         string   `json:"topic"`    // 聊天事件 topic
	GroupID       string   `json:"group_id"` // 消费组
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	SASLMechanism string   `json:"sasl_mechanism"` // PLAIN(默认), SCRAM-SHA-256, SCRAM-SHA-512
	UseTLS        bool     `json:"use_tls"`
	CertFile      string   `json:"cert_file"`
	KeyFile       string   `json:"key_file"`
	CAFile        string   `json:"ca_file"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func LoadConfig() (config Config, err error) {
	file, err := os.Open("config/config.json")
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	return config, nil
}
