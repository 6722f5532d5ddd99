package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const Name = "versiond"
const ConfigFileName = "config.yaml"
const EnvPrefix = "VERSIOND_"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host            string
		SshPort         int    `yaml:"sshPort"`
		HttpPort        int    `yaml:"httpPort"`
		Domain          string `yaml:"domain"`
		DbPath          string `yaml:"dbPath"`
		LogLevel        string `yaml:"logLevel"`
		InstanceKeyPath string `yaml:"instanceKeyPath"`
		WithSsh         bool   `yaml:"withSsh"`
		// AdminKeys are authorized_keys lines allowed into the admin console.
		AdminKeys []string `yaml:"adminKeys"`
		// TrustedProxies may set X-Forwarded-For. Empty means the peer
		// address is the client address.
		TrustedProxies []string `yaml:"trustedProxies"`
	}
	// Defederation holds hostname globs whose traffic is silently dropped.
	Defederation []string `yaml:"defederation"`
	Bridge       struct {
		Enabled    bool     `yaml:"enabled"`
		Token      string   `yaml:"token"`
		AllowedIps []string `yaml:"allowedIps"`
		Url        string   `yaml:"url"`
	}
	Filters struct {
		Note        []string
		Username    []string
		DisplayName []string `yaml:"displayName"`
		Bio         []string
	}
	Delivery struct {
		Workers      int
		PollInterval time.Duration `yaml:"pollInterval"`
		BatchSize    int           `yaml:"batchSize"`
		MaxAttempts  int           `yaml:"maxAttempts"`
	}
	Cache struct {
		RedisAddr string        `yaml:"redisAddr"`
		Ttl       time.Duration `yaml:"ttl"`
	}
}

// BaseURL is the public origin of this instance.
func (c *AppConfig) BaseURL() string {
	return "https://" + c.Conf.Domain
}

// Redacted is a copy of c safe to log.
func (c *AppConfig) Redacted() AppConfig {
	r := *c
	if r.Bridge.Token != "" {
		r.Bridge.Token = "[redacted]"
	}
	return r
}

func ReadConf() (*AppConfig, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	configPath := StatePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		logger := NewLogger("Config")
		logger.Info("Config file not found, using embedded defaults", "path", configPath)
		buf = embeddedConfig

		configDir, dirErr := StateDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644); writeErr != nil {
				logger.Warn("Could not write default config", "path", userConfigPath, "err", writeErr)
			} else {
				logger.Info("Created default config file", "path", userConfigPath)
			}
		}
	}

	return ParseConf(buf)
}

// ParseConf decodes yaml on top of the embedded defaults and applies
// VERSIOND_* environment overrides.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, fmt.Errorf("in embedded config: %w", err)
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}
	if err := applyEnv(c); err != nil {
		return nil, err
	}
	return c, nil
}

func applyEnv(c *AppConfig) error {
	var err error

	setString(&c.Conf.Host, "HOST")
	setString(&c.Conf.Domain, "DOMAIN")
	setString(&c.Conf.DbPath, "DB_PATH")
	setString(&c.Conf.LogLevel, "LOG_LEVEL")
	setString(&c.Conf.InstanceKeyPath, "INSTANCE_KEY_PATH")
	setString(&c.Bridge.Token, "BRIDGE_TOKEN")
	setString(&c.Bridge.Url, "BRIDGE_URL")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")

	if v := env("SSHPORT"); v != "" {
		if c.Conf.SshPort, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sSSHPORT: %w", EnvPrefix, err)
		}
	}
	if v := env("HTTPPORT"); v != "" {
		if c.Conf.HttpPort, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sHTTPPORT: %w", EnvPrefix, err)
		}
	}
	if v := env("DELIVERY_WORKERS"); v != "" {
		if c.Delivery.Workers, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sDELIVERY_WORKERS: %w", EnvPrefix, err)
		}
	}

	if v := env("WITH_SSH"); v != "" {
		c.Conf.WithSsh = v == "true"
	}
	if v := env("BRIDGE_ENABLED"); v != "" {
		c.Bridge.Enabled = v == "true"
	}
	if v := env("BRIDGE_ALLOWED_IPS"); v != "" {
		c.Bridge.AllowedIps = splitList(v)
	}
	if v := env("TRUSTED_PROXIES"); v != "" {
		c.Conf.TrustedProxies = splitList(v)
	}
	if v := env("DEFEDERATION"); v != "" {
		c.Defederation = splitList(v)
	}

	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
