package config

import (
	"flag"
	"os"
	"time"

	"github.com/dzaytsev/credkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3500")
//	-m string   MongoDB connection URI
//	-n string   database name
//	-u string   collection name
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-l int      lookup cache TTL, seconds
//	-w int      worker process count (0 = NumCPU)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-n", "-u", "-s", "-t", "-l", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "mongodb connection uri")
	fs.StringVar(&config.DatabaseName, "n", config.DatabaseName, "database name")
	fs.StringVar(&config.CollectionName, "u", config.CollectionName, "collection name")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session_ttl (in minutes)")
	cacheTTL := fs.Int("l", int(config.CacheTTL.Seconds()), "cache_ttl (in seconds)")

	fs.IntVar(&config.Workers, "w", config.Workers, "worker process count (0 = NumCPU)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
	config.CacheTTL = time.Duration(*cacheTTL) * time.Second
}
