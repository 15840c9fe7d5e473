// Package kafka publishes gateway notifications. The (external) notification
// service consumes the topic and turns message-created events into emails and
// push notifications; the gateway only produces. A nil *Producer disables the
// pipeline.
package kafka

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

type Config struct {
	Brokers     []string
	Topic       string
	Retries     int
	Compression string // none|snappy|lz4|zstd
}

func buildConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 1
	}
	cfg.Producer.Retry.Max = c.Retries
	// Key-hashed partitioning keeps one conversation's notifications ordered.
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

type Producer struct {
	topic string
	prod  sarama.SyncProducer
}

func NewProducer(c Config) (*Producer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errors.New("kafka brokers or topic missing")
	}
	prod, err := sarama.NewSyncProducer(c.Brokers, buildConfig(c))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return &Producer{topic: c.Topic, prod: prod}, nil
}

// SendJSON publishes one notification keyed by conversation id.
func (p *Producer) SendJSON(key string, value any) error {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	_, _, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(raw),
	})
	return errors.Wrap(err, "send notification")
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.prod.Close()
}
