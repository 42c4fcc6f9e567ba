// Package config handles configuration for the server, including defaults,
// JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the credkeeper server.
//
// Fields:
//   - EndpointAddr: bind address shared by all workers (SO_REUSEPORT).
//   - MongoURI / DatabaseName / CollectionName: document store location.
//   - SecretKey: HMAC secret for signing session tokens (HS256). Do not use
//     the test default in prod.
//   - SessionTTL: validity window of issued tokens.
//   - CacheTTL: self-expiry of per-worker lookup cache entries.
//   - Workers: worker process count; 0 means one per CPU core.
type Config struct {
	EndpointAddr   string
	MongoURI       string
	DatabaseName   string
	CollectionName string
	SecretKey      string
	SessionTTL     time.Duration
	CacheTTL       time.Duration
	Workers        int
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":3500"
	c.MongoURI = "mongodb://localhost:27017"
	c.DatabaseName = "test"
	c.CollectionName = "users"
	c.SecretKey = "secretKey"
	c.SessionTTL = 1 * time.Hour
	c.CacheTTL = 600 * time.Second
	c.Workers = 0
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
