package kafka

import (
	"crypto/tls"
	"fmt"
	"time"

	kafka_config "agenda/pkg/kafka/config"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

func saslMechanism(cfg *kafka_config.Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "", kafka_config.SASLNone:
		return nil, nil
	case kafka_config.SASLPlain:
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case kafka_config.SASLScramSHA256:
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case kafka_config.SASLScramSHA512:
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
	}
}

func tlsConfig(cfg *kafka_config.Config) *tls.Config {
	if !cfg.TLSEnabled {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// newTransport is used by writers.
func newTransport(cfg *kafka_config.Config) (*kafka.Transport, error) {
	mechanism, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		ClientID: cfg.ClientID,
		SASL:     mechanism,
		TLS:      tlsConfig(cfg),
	}, nil
}

// newDialer is used by readers.
func newDialer(cfg *kafka_config.Config) (*kafka.Dialer, error) {
	mechanism, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		ClientID:      cfg.ClientID,
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig(cfg),
	}, nil
}
