// Package config provides configuration parsing and validation for badnet.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay configuration.
type Config struct {
	Listen        string        `yaml:"listen"`         // host:port to bind
	Target        string        `yaml:"target"`         // host:port of the server
	Loss          float64       `yaml:"loss"`           // drop probability in [0, 1]
	Debug         bool          `yaml:"debug"`          // print a line per forwarded packet
	Seed          int64         `yaml:"seed"`           // 0 seeds from the clock
	StatsInterval time.Duration `yaml:"stats_interval"` // 0 disables periodic summaries
	Log           LogConfig     `yaml:"log"`
	Health        HealthConfig  `yaml:"health"`
}

// LogConfig contains structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// HealthConfig defines health check server settings.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Loss: 0.0,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Health: HealthConfig{
			Enabled:      false,
			Address:      "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ReadFile reads and decodes a configuration file without validating it.
// Callers merge command-line overrides and then call Validate.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(data)
}

// Decode expands environment references and decodes YAML bytes on top of
// the defaults.
func Decode(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // Keep original if not found
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Listen == "" {
		errs = append(errs, "listen address is required")
	} else if err := validateHostPort(c.Listen, false); err != nil {
		errs = append(errs, fmt.Sprintf("invalid listen address %q: %v", c.Listen, err))
	}

	if c.Target == "" {
		errs = append(errs, "target address is required")
	} else if err := validateHostPort(c.Target, true); err != nil {
		errs = append(errs, fmt.Sprintf("invalid target address %q: %v", c.Target, err))
	}

	if math.IsNaN(c.Loss) || c.Loss < 0 || c.Loss > 1 {
		errs = append(errs, fmt.Sprintf("loss must be between 0.0 and 1.0, got %v", c.Loss))
	}

	if c.StatsInterval < 0 {
		errs = append(errs, "stats_interval must not be negative")
	}

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Health.Enabled {
		if c.Health.Address == "" {
			errs = append(errs, "health.address is required when enabled")
		} else if err := validateHostPort(c.Health.Address, false); err != nil {
			errs = append(errs, fmt.Sprintf("invalid health.address %q: %v", c.Health.Address, err))
		}
	}
	if c.Health.ReadTimeout < 0 || c.Health.WriteTimeout < 0 {
		errs = append(errs, "health timeouts must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateHostPort checks a host:port pair. A remote endpoint needs a
// host and a non-zero port; a local bind address may omit the host.
func validateHostPort(addr string, remote bool) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q", portStr)
	}
	if remote {
		if host == "" {
			return errors.New("host is required")
		}
		if port == 0 {
			return errors.New("port must be non-zero")
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// String returns a YAML representation of the config.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}
