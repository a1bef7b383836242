package log

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Encoding values accepted by Config.Encoding.
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config is the logging configuration document referenced by the worker
// config's logging_cfg key.
type Config struct {
	// Level is the minimum severity: debug, info, warn, error. Default info.
	Level string `yaml:"level"`
	// Encoding is json or console. Default json.
	Encoding string `yaml:"encoding"`
	// Outputs lists destinations: "stderr", "stdout", or file paths.
	// Default stderr.
	Outputs []string `yaml:"outputs"`
}

// LoadConfig reads a YAML logging config from path. A missing or empty path
// yields the zero Config (info level, JSON encoding): logging setup must not
// block worker startup.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read logging config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid YAML in logging config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) level() zapcore.Level {
	switch c.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (c Config) encoding() string {
	if c.Encoding == EncodingConsole {
		return EncodingConsole
	}
	return EncodingJSON
}
