package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/netutil"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/service/gateway"
	"CareChat/service/kafka"
	"CareChat/service/natsx"
	"CareChat/service/storage"
	"CareChat/tools/ids"
)

var (
	confPath = flag.String("conf", "config.yaml", "config file path")
	maxConns = flag.Int("max-conns", 0, "max concurrent connections, 0 means unlimited")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	ids.SetNodeID(cfg.Gateway.SnowflakeNode)

	var store storage.Store
	if cfg.Gateway.Redis.Addr != "" {
		rs, err := storage.NewRedis(storage.RedisConfig{
			Addr:     cfg.Gateway.Redis.Addr,
			Password: cfg.Gateway.Redis.Password,
			DB:       cfg.Gateway.Redis.DB,
			PoolSize: cfg.Gateway.Redis.PoolSize,
		})
		if err != nil {
			logger.Errorf("redis: %v", err)
			os.Exit(1)
		}
		store = rs
	} else {
		logger.Warnf("redis addr empty, using in-memory store")
		store = storage.NewMemory()
	}

	var nc *natsx.Manager
	if len(cfg.Gateway.Nats.Servers) > 0 {
		nc, err = natsx.NewManager(natsx.Config{Servers: cfg.Gateway.Nats.Servers})
		if err != nil {
			logger.Errorf("nats: %v", err)
			os.Exit(1)
		}
		defer nc.Close()
	}

	var notify *kafka.Producer
	if len(cfg.Gateway.Kafka.Brokers) > 0 {
		notify, err = kafka.NewProducer(kafka.Config{
			Brokers: cfg.Gateway.Kafka.Brokers,
			Topic:   cfg.Gateway.Kafka.Topic,
		})
		if err != nil {
			logger.Errorf("kafka: %v", err)
			os.Exit(1)
		}
		defer notify.Close()
	}

	srv, err := gateway.NewServer(gateway.Config{
		Addr:          cfg.Gateway.Addr,
		NodeID:        cfg.Gateway.NodeID,
		JWTSecret:     []byte(cfg.Gateway.JWTSecret),
		SendQueue:     cfg.Gateway.SendQueue,
		FanoutWorkers: cfg.Gateway.FanoutWorkers,
		FanoutQueue:   cfg.Gateway.FanoutQueue,
	}, store, nc, notify)
	if err != nil {
		logger.Errorf("gateway: %v", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		logger.Errorf("listen %s: %v", cfg.Gateway.Addr, err)
		os.Exit(1)
	}
	if *maxConns > 0 {
		ln = netutil.LimitListener(ln, *maxConns)
	}

	go func() {
		logger.Infof("gateway %s listening on %s", cfg.Gateway.NodeID, cfg.Gateway.Addr)
		if err := http.Serve(ln, srv.Router()); err != nil {
			logger.Errorf("serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Infof("gateway shutting down")
	_ = ln.Close()
}
