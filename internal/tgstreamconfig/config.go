// Package tgstreamconfig loads the gateway's runtime configuration from
// the environment. It is the sole place in the repository that calls
// os.Getenv for core settings — every other package receives a *Config
// value instead of reading the environment itself.
package tgstreamconfig

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting the streaming engine
// needs. Values are resolved once at startup and never mutated.
type Config struct {
	APIID      int
	APIHash    string
	BotToken   string
	BinChannel int64

	Host      string
	Port      int
	PublicURL string

	ConnectionLimit  int
	DownloadPartSize int64
	CacheSize        int

	MultiTokens []string

	NoUpdate bool
	Debug    bool
	ExtDebug bool

	LogFile string
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultConnectionLimit  = 20
	defaultDownloadPartSize = 1024 * 1024
	defaultCacheSize        = 128
)

// ConfigMissing is returned when a required environment variable is
// absent or malformed. It is always fatal — the process must not bind
// its HTTP listener without a complete configuration.
type ConfigMissing struct {
	Key string
	Err error
}

func (e *ConfigMissing) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: required variable %s invalid: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config: required variable %s is not set", e.Key)
}

func (e *ConfigMissing) Unwrap() error { return e.Err }

// Load reads and validates the configuration table from the process
// environment, applying the defaults documented in the spec.
func Load() (*Config, error) {
	cfg := &Config{
		Host:             getEnv("HOST", defaultHost),
		ConnectionLimit:  defaultConnectionLimit,
		DownloadPartSize: defaultDownloadPartSize,
		CacheSize:        defaultCacheSize,
	}

	var err error

	cfg.APIID, err = requireInt("API_ID")
	if err != nil {
		return nil, err
	}

	cfg.APIHash, err = requireString("API_HASH")
	if err != nil {
		return nil, err
	}

	cfg.BotToken, err = requireString("BOT_TOKEN")
	if err != nil {
		return nil, err
	}

	cfg.BinChannel, err = requireInt64("BIN_CHANNEL")
	if err != nil {
		return nil, err
	}

	cfg.Port = optionalInt("PORT", defaultPort)
	cfg.PublicURL = getEnv("PUBLIC_URL", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port))

	cfg.ConnectionLimit = optionalInt("CONNECTION_LIMIT", defaultConnectionLimit)

	cfg.DownloadPartSize = int64(optionalInt("DOWNLOAD_PART_SIZE", defaultDownloadPartSize))
	cfg.CacheSize = optionalInt("CACHE_SIZE", defaultCacheSize)

	cfg.MultiTokens = multiClientTokens()

	cfg.NoUpdate = boolEnv("NO_UPDATE")
	cfg.Debug = boolEnv("DEBUG")
	cfg.ExtDebug = boolEnv("EXT_DEBUG")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// multiClientTokens collects MULTI_TOKEN{N} environment variables and
// returns their values ordered by the numeric suffix N, matching
// get_multi_client_tokens in original_source/tgfs/config.py.
func multiClientTokens() []string {
	const prefix = "MULTI_TOKEN"

	type indexed struct {
		n     int
		token string
	}
	var found []indexed

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		suffix := key[len(prefix):]
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		found = append(found, indexed{n: n, token: value})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	tokens := make([]string, len(found))
	for i, f := range found {
		tokens[i] = f.token
	}
	return tokens
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func optionalInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		// Mirrors Python's bool(str) truthiness: any non-empty string
		// that isn't a recognized boolean literal is still truthy.
		return true
	}
	return b
}

func requireString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", &ConfigMissing{Key: key}
	}
	return v, nil
}

func requireInt(key string) (int, error) {
	v, err := requireString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigMissing{Key: key, Err: err}
	}
	return n, nil
}

func requireInt64(key string) (int64, error) {
	v, err := requireString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ConfigMissing{Key: key, Err: err}
	}
	return n, nil
}
