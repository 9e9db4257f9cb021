package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

type Config struct {
	AppEnv             string        `env:"APP_ENV,default=development"`
	AppPort            string        `env:"APP_PORT,default=8080"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	RetryLimit         int           `env:"RETRY_LIMIT,default=1"`
	ProviderURLs       string        `env:"PROVIDER_URLS"`
	ProviderNames      string        `env:"PROVIDER_NAMES"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT,default=5s"`
	BreakerEnabled     bool          `env:"BREAKER_ENABLED,default=true"`
	DispatchTimeout    time.Duration `env:"DISPATCH_TIMEOUT,default=30s"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	KafkaBrokers       string        `env:"KAFKA_BROKERS"`
	KafkaTopic         string        `env:"KAFKA_TOPIC,default=dispatch.requests"`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP,default=dispatch-coordinator"`
	JaegerEndpoint     string        `env:"JAEGER_ENDPOINT"`
}

// ProviderEndpoint is one entry of the fallback list, in priority order.
type ProviderEndpoint struct {
	Name string
	URL  string
}

func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.RetryLimit < 1 {
		cfg.RetryLimit = 1
	}
	return &cfg, nil
}

// Providers pairs PROVIDER_URLS with PROVIDER_NAMES by position. Missing
// names default to provider-N.
func (c *Config) Providers() []ProviderEndpoint {
	urls := splitList(c.ProviderURLs)
	names := splitList(c.ProviderNames)

	endpoints := make([]ProviderEndpoint, 0, len(urls))
	for i, u := range urls {
		name := fmt.Sprintf("provider-%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		endpoints = append(endpoints, ProviderEndpoint{Name: name, URL: u})
	}
	return endpoints
}

func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
