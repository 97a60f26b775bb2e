// Package config loads server settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// Storage
	DBPath string `envconfig:"PICADITO_DB_PATH" default:"./data/picadito.db"`

	// Network
	Addr        string   `envconfig:"PICADITO_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"PICADITO_CORS_ORIGINS" default:"*"`

	// JWT
	JWTSecret string        `envconfig:"PICADITO_JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"PICADITO_TOKEN_TTL" default:"24h"`

	// Matchmaking
	PollInterval      time.Duration `envconfig:"PICADITO_POLL_INTERVAL" default:"5s"`
	PollJitter        time.Duration `envconfig:"PICADITO_POLL_JITTER" default:"1s"`
	QueueStaleAfter   time.Duration `envconfig:"PICADITO_QUEUE_STALE_AFTER" default:"30m"`
	FormationAttempts int           `envconfig:"PICADITO_FORMATION_RETRIES" default:"3"`

	// Optional backends; empty means in-process fallbacks.
	RedisURL     string `envconfig:"PICADITO_REDIS_URL"`
	AMQPURL      string `envconfig:"PICADITO_AMQP_URL"`
	AMQPExchange string `envconfig:"PICADITO_AMQP_EXCHANGE" default:"picadito.events"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	if err != nil {
		return c, err
	}
	c.CORSOrigins = trimAll(c.CORSOrigins)
	return c, nil
}

func trimAll(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
