package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/storepos/internal/license"
)

// EnvPrefix prefixes every environment override, e.g.
// STOREPOS_LICENSE_SERVICE_URL.
const EnvPrefix = "STOREPOS_"

// Config represents the application configuration
type Config struct {
	License struct {
		ServiceURL string        `koanf:"service_url"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"license"`

	Data struct {
		ServiceURL string        `koanf:"service_url"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"data"`

	Server struct {
		Port                    int    `koanf:"port"`
		DatabaseURL             string `koanf:"database_url"`
		ActivationRatePerMinute int    `koanf:"activation_rate_per_minute"`
		JobQueue                bool   `koanf:"job_queue"`
	} `koanf:"server"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

func defaults() map[string]interface{} {
	lc := license.DefaultConfig()
	return map[string]interface{}{
		"license.service_url":               lc.ServiceURL,
		"license.timeout":                   lc.Timeout.String(),
		"data.service_url":                  "http://127.0.0.1:8891",
		"data.timeout":                      "15s",
		"server.port":                       8890,
		"server.activation_rate_per_minute": 10,
		"server.job_queue":                  false,
		"log.level":                         "info",
		"log.pretty":                        true,
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./storepos.toml", "$HOME/.storepos.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// STOREPOS_SERVER_DATABASE_URL -> server.database_url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// LicenseClient returns the client-side licence settings.
func (c *Config) LicenseClient() *license.Config {
	return &license.Config{ServiceURL: c.License.ServiceURL, Timeout: c.License.Timeout}
}

const sampleConfig = `# StorePOS Configuration

[license]
service_url = "http://127.0.0.1:8890"
timeout = "15s"

[data]
service_url = "http://127.0.0.1:8891"
timeout = "15s"

[server]
port = 8890
# Leave empty to keep licence data in memory.
database_url = ""
activation_rate_per_minute = 10
job_queue = false

[log]
level = "info"
pretty = true
`

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if err := validURL("license.service_url", config.License.ServiceURL); err != nil {
		return err
	}
	if err := validURL("data.service_url", config.Data.ServiceURL); err != nil {
		return err
	}
	if config.License.Timeout <= 0 {
		return fmt.Errorf("license.timeout must be positive")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", config.Server.Port)
	}
	if config.Server.ActivationRatePerMinute < 0 {
		return fmt.Errorf("server.activation_rate_per_minute must not be negative")
	}
	if config.Server.JobQueue && config.Server.DatabaseURL == "" {
		return fmt.Errorf("server.job_queue requires server.database_url")
	}
	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.Log.Level)
	}
	return nil
}

func validURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", key, raw)
	}
	return nil
}
