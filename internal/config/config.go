package config

// Configuration loading and validation for the FINS daemons

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PLCConfig describes the PLC endpoint.
type PLCConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TimeoutMs int    `yaml:"timeout_ms"`
	LocalPort int    `yaml:"local_port,omitempty"` // 0 = ephemeral
}

// FieldType selects the decoder applied to a polled field.
type FieldType string

const (
	FieldWord  FieldType = "word"
	FieldBool  FieldType = "bool"
	FieldFloat FieldType = "float" // low word at Word, high word at Word+1
	FieldText  FieldType = "text"  // Word..EndWord inclusive
)

// FieldConfig names a value inside the polled window. Word indexes are
// relative to poll.address.
type FieldConfig struct {
	Name    string    `yaml:"name"`
	Type    FieldType `yaml:"type"`
	Word    int       `yaml:"word"`
	EndWord int       `yaml:"end_word,omitempty"`
	Swap    bool      `yaml:"swap,omitempty"`
}

// PollConfig describes the data memory window read on every tick.
type PollConfig struct {
	Address    uint16        `yaml:"address"`
	Count      uint16        `yaml:"count"`
	IntervalMs int           `yaml:"interval_ms"`
	Fields     []FieldConfig `yaml:"fields,omitempty"`
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console" or "json"
}

// SimulatorConfig controls the PLC simulator daemon.
type SimulatorConfig struct {
	ListenIP string `yaml:"listen_ip"`
	Port     int    `yaml:"port"`
}

// Config is the daemon configuration file.
type Config struct {
	PLC       PLCConfig       `yaml:"plc"`
	Poll      PollConfig      `yaml:"poll"`
	Log       LogConfig       `yaml:"log"`
	Simulator SimulatorConfig `yaml:"simulator,omitempty"`
}

// Timeout returns plc.timeout_ms as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.PLC.TimeoutMs) * time.Millisecond
}

// Interval returns poll.interval_ms as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// CreateDefaultConfig returns the configuration written by autoCreate.
func CreateDefaultConfig() *Config {
	return &Config{
		PLC: PLCConfig{
			Host:      "192.168.250.1",
			Port:      9600,
			TimeoutMs: 5000,
		},
		Poll: PollConfig{
			Address:    1000,
			Count:      44,
			IntervalMs: 100,
			Fields: []FieldConfig{
				{Name: "blink", Type: FieldBool, Word: 0},
				{Name: "fixture_run", Type: FieldWord, Word: 2},
				{Name: "torque", Type: FieldFloat, Word: 10},
				{Name: "cycle_time", Type: FieldFloat, Word: 20},
				{Name: "job_no", Type: FieldWord, Word: 22},
				{Name: "pathname", Type: FieldText, Word: 34, EndWord: 43},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Simulator: SimulatorConfig{
			ListenIP: "0.0.0.0",
			Port:     9600,
		},
	}
}

// WriteDefaultConfig writes the default configuration to path.
func WriteDefaultConfig(path string) error {
	cfg := CreateDefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file.
// If the file doesn't exist and autoCreate is true, it will create a default config file
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if !autoCreate {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := WriteDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read created config file: %w", err)
		}
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML, applies defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := CreateDefaultConfig()
	if cfg.PLC.Port == 0 {
		cfg.PLC.Port = def.PLC.Port
	}
	if cfg.PLC.TimeoutMs == 0 {
		cfg.PLC.TimeoutMs = def.PLC.TimeoutMs
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = def.Poll.IntervalMs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Simulator.ListenIP == "" {
		cfg.Simulator.ListenIP = def.Simulator.ListenIP
	}
	if cfg.Simulator.Port == 0 {
		cfg.Simulator.Port = def.Simulator.Port
	}
}

// ValidateConfig validates a configuration
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.PLC.Host) == "" {
		return fmt.Errorf("plc.host is required")
	}
	if err := validatePort("plc.port", cfg.PLC.Port); err != nil {
		return err
	}
	if cfg.PLC.LocalPort != 0 {
		if err := validatePort("plc.local_port", cfg.PLC.LocalPort); err != nil {
			return err
		}
	}
	if cfg.PLC.TimeoutMs < 0 {
		return fmt.Errorf("plc.timeout_ms must be positive, got %d", cfg.PLC.TimeoutMs)
	}

	if cfg.Poll.Count == 0 {
		return fmt.Errorf("poll.count must be at least 1")
	}
	if int(cfg.Poll.Address)+int(cfg.Poll.Count) > 0x10000 {
		return fmt.Errorf("poll window D%d+%d runs past the end of data memory", cfg.Poll.Address, cfg.Poll.Count)
	}
	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be positive, got %d", cfg.Poll.IntervalMs)
	}
	for i, f := range cfg.Poll.Fields {
		if err := validateField(f, int(cfg.Poll.Count)); err != nil {
			return fmt.Errorf("poll.fields[%d]: %w", i, err)
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json; got %q", cfg.Log.Format)
	}

	if err := validatePort("simulator.port", cfg.Simulator.Port); err != nil {
		return err
	}
	return nil
}

func validateField(f FieldConfig, count int) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("name is required")
	}
	last := f.Word
	switch f.Type {
	case FieldWord, FieldBool:
	case FieldFloat:
		last = f.Word + 1
	case FieldText:
		if f.EndWord < f.Word {
			return fmt.Errorf("%s: end_word %d is before word %d", f.Name, f.EndWord, f.Word)
		}
		last = f.EndWord
	default:
		return fmt.Errorf("%s: unknown type %q", f.Name, f.Type)
	}
	if f.Word < 0 || last >= count {
		return fmt.Errorf("%s: words %d-%d are outside the %d-word window", f.Name, f.Word, last, count)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
