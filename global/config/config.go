// Package config loads the application config: yaml file first, environment
// overrides second, defaults last.
package config

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NatsConf struct {
	Servers []string `mapstructure:"servers"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type GatewayConf struct {
	Addr          string    `mapstructure:"addr"`
	NodeID        string    `mapstructure:"node_id"`
	SnowflakeNode int64     `mapstructure:"snowflake_node"`
	JWTSecret     string    `mapstructure:"jwt_secret"`
	SendQueue     int       `mapstructure:"send_queue"`
	FanoutWorkers int       `mapstructure:"fanout_workers"`
	FanoutQueue   int       `mapstructure:"fanout_queue"`
	Redis         RedisConf `mapstructure:"redis"`
	Nats          NatsConf  `mapstructure:"nats"`
	Kafka         KafkaConf `mapstructure:"kafka"`
}

type ClientConf struct {
	BaseURL  string `mapstructure:"base_url"`
	WSURL    string `mapstructure:"ws_url"`
	Token    string `mapstructure:"token"`
	UserID   string `mapstructure:"user_id"`
	UserName string `mapstructure:"user_name"`
}

type AppConfig struct {
	Gateway GatewayConf `mapstructure:"gateway"`
	Client  ClientConf  `mapstructure:"client"`
}

func (c *AppConfig) norm() {
	if c.Gateway.Addr == "" {
		c.Gateway.Addr = ":8080"
	}
	if c.Gateway.NodeID == "" {
		c.Gateway.NodeID = "gw-1"
	}
	if c.Gateway.SnowflakeNode <= 0 {
		c.Gateway.SnowflakeNode = 1
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://127.0.0.1:8080"
	}
	if c.Client.WSURL == "" {
		c.Client.WSURL = strings.Replace(c.Client.BaseURL, "http", "ws", 1)
	}
}

// Load reads the yaml file (missing file is fine) and applies env overrides.
func Load(path string) (*AppConfig, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, errors.Wrapf(err, "parse %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read %s", path)
		}
	}

	var cfg AppConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	applyEnv(&cfg)
	cfg.norm()
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("CARECHAT_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("CARECHAT_NODE_ID"); v != "" {
		cfg.Gateway.NodeID = v
	}
	if v := os.Getenv("CARECHAT_JWT_SECRET"); v != "" {
		cfg.Gateway.JWTSecret = v
	}
	if v := os.Getenv("CARECHAT_REDIS_ADDR"); v != "" {
		cfg.Gateway.Redis.Addr = v
	}
	if v := os.Getenv("CARECHAT_REDIS_PASSWORD"); v != "" {
		cfg.Gateway.Redis.Password = v
	}
	if v := os.Getenv("CARECHAT_NATS_SERVERS"); v != "" {
		cfg.Gateway.Nats.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("CARECHAT_KAFKA_BROKERS"); v != "" {
		cfg.Gateway.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CARECHAT_KAFKA_TOPIC"); v != "" {
		cfg.Gateway.Kafka.Topic = v
	}
	if v := os.Getenv("CARECHAT_TOKEN"); v != "" {
		cfg.Client.Token = v
	}
	if v := os.Getenv("CARECHAT_BASE_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
}
