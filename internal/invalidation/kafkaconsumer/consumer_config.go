package kafkaconsumer

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	OpTimeout           time.Duration
}

func FromConfig(c config.InvalidationCfg) Config {
	topic := c.Topic
	if topic == "" {
		topic = "dataset-refresh"
	}
	group := c.GroupID
	if group == "" {
		group = "rurair-cache"
	}
	brokers := splitCSV(c.Brokers)
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return Config{
		Brokers:             brokers,
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		OpTimeout:           5 * time.Second,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
