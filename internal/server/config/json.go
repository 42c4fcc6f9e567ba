package config

import (
	"encoding/json"
	"os"

	"github.com/dzaytsev/credkeeper/internal/flagx"
	"github.com/dzaytsev/credkeeper/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Duration fields use timex.Duration, which accepts both strings such as
// "1h" and integer nanoseconds. After unmarshalling, non-zero values are
// copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr   string         `json:"endpoint_addr"`
	MongoURI       string         `json:"mongo_uri"`
	DatabaseName   string         `json:"database_name"`
	CollectionName string         `json:"collection_name"`
	SecretKey      string         `json:"secret_key"`
	SessionTTL     timex.Duration `json:"session_ttl"`
	CacheTTL       timex.Duration `json:"cache_ttl"`
	Workers        int            `json:"workers"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. Fields absent from the file keep
// their current values. If the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.MongoURI != "" {
		config.MongoURI = c.MongoURI
	}
	if c.DatabaseName != "" {
		config.DatabaseName = c.DatabaseName
	}
	if c.CollectionName != "" {
		config.CollectionName = c.CollectionName
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.CacheTTL.Duration != 0 {
		config.CacheTTL = c.CacheTTL.Duration
	}
	if c.Workers != 0 {
		config.Workers = c.Workers
	}
}
