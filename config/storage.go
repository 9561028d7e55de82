package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Token store backends.
const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

const defaultTokenKey = "authToken"

// StorageConfig selects where the bearer token survives restarts.
type StorageConfig struct {
	TokenStore string `env:"KRAMA_TOKEN_STORE" envDefault:"file"`
	// TokenFile defaults to <user config dir>/billing-krama/<TokenKey>.
	TokenFile string `env:"KRAMA_TOKEN_FILE"`
	TokenKey  string `env:"KRAMA_TOKEN_KEY"   envDefault:"authToken"`

	Redis RedisConfig `envPrefix:"REDIS_"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// Sanitize normalises the backend name and fills in the token file path.
func (c *StorageConfig) Sanitize() {
	c.TokenStore = strings.ToLower(strings.TrimSpace(c.TokenStore))
	if c.TokenStore != TokenStoreRedis {
		c.TokenStore = TokenStoreFile
	}
	if c.TokenKey = strings.TrimSpace(c.TokenKey); c.TokenKey == "" {
		c.TokenKey = defaultTokenKey
	}
	if c.TokenFile = strings.TrimSpace(c.TokenFile); c.TokenFile == "" {
		c.TokenFile = defaultTokenFile(c.TokenKey)
	}
	c.Redis.URI = strings.TrimSpace(c.Redis.URI)
	if c.Redis.DB < 0 {
		c.Redis.DB = 0
	}
	if c.Redis.UseSentinel && len(c.Redis.SentinelNodes) == 0 {
		c.Redis.UseSentinel = false
	}
}

func defaultTokenFile(key string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "billing-krama", key)
}
