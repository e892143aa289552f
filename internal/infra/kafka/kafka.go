package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// Config holds Kafka connection settings
type Config struct {
	Brokers []string
	Topic   string
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return nil
}

// baseSaramaConfig returns the settings shared by producer and consumer.
func baseSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	return cfg
}
