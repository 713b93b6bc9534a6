package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	appconfig "github.com/carlos18bp/live-chat-feature/config"

	"github.com/IBM/sarama"
)

// NewSaramaConfigFor 按配置的 sasl_mechanism 选择认证方式：
// SCRAM-SHA-256/512 走 SCRAM，其余（含空值）走 PLAIN。
func NewSaramaConfigFor(cfg *appconfig.KafkaConfig) (*sarama.Config, error) {
	switch cfg.SASLMechanism {
	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		return NewSaramaConfigWithSCRAM(cfg, cfg.SASLMechanism)
	default:
		return NewSaramaConfig(cfg)
	}
}

func NewSaramaConfig(cfg *appconfig.KafkaConfig) (*sarama.Config, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0

	// 生产者配置
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner // 同一会话的事件落到同一分区
	config.Producer.Interceptors = []sarama.ProducerInterceptor{NewChatEventInterceptor()}

	// 消费者配置
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	// 认证配置

	// 1. SASL/PLAIN 认证
	if cfg.Username != "" && cfg.Password != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		config.Net.SASL.User = cfg.Username
		config.Net.SASL.Password = cfg.Password
		config.Net.SASL.Handshake = true
	}

	// 2. TLS 配置
	if cfg.UseTLS {
		tlsConfig, err := createTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
		if err != nil {
			return nil, err
		}
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig
	}

	return config, nil
}

// 创建TLS配置
func createTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	// 加载CA证书
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}

		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	// 加载客户端证书
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	tlsConfig.InsecureSkipVerify = false

	return tlsConfig, nil
}
