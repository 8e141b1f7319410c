// Package config provides YAML and TOML configuration for the canmon
// binary.
//
// A config file describes where frames come from and how they are shown,
// as an alternative to passing every flag on the command line. The format
// is picked from the file extension.
//
// Example configuration (YAML):
//
//	device: /dev/ttyUSB0
//	baud_rate: 115200
//	read_timeout: 100ms
//
//	whitelist: [0xF6, 0x1A0, 16]
//	highlight: ["0xF6"]
//	view: static
//
//	http_addr: 127.0.0.1:8080
//	record:
//	  path: ${HOME}/captures/bus.cbor
//
// The same file in TOML:
//
//	device = "/dev/ttyUSB0"
//	whitelist = [0xF6, 0x1A0, 16]
//	view = "scroll"
//
//	[replay]
//	path = "bus.msgpack"
//	pace = true
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/canmon/internal/capture"
)

const (
	defaultBaudRate      = 115200
	defaultReadTimeout   = 100 * time.Millisecond
	defaultHistorySize   = 1000
	defaultMaxLineLength = 4096

	// minMaxLineLength keeps room for the shortest valid frame line.
	minMaxLineLength = 16
	maxReadTimeout   = 10 * time.Second
)

// View names accepted by the view key and the --view flag.
const (
	ViewStatic = "static"
	ViewScroll = "scroll"
	ViewLog    = "log"
)

// ErrNoSource is returned when neither device, file nor replay is set.
var ErrNoSource = errors.New("no frame source configured (device, file or replay.path)")

// Config is the root configuration structure.
//
// Use [Load], [Parse] or [ParseTOML] to create a Config, or [Default] for
// the defaults alone.
type Config struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string `yaml:"device" toml:"device"`

	// BaudRate is the serial speed. Defaults to 115200.
	BaudRate int `yaml:"baud_rate" toml:"baud_rate"`

	// ReadTimeout bounds one serial read. Defaults to 100ms.
	ReadTimeout Duration `yaml:"read_timeout" toml:"read_timeout"`

	// File reads frame lines from a file or named pipe. "-" is stdin.
	File string `yaml:"file" toml:"file"`

	// Replay plays back a recorded capture.
	Replay ReplayConfig `yaml:"replay" toml:"replay"`

	// Whitelist restricts recorded IDs. Entries may be decimal or carry a
	// 0x, 0o or 0b prefix.
	Whitelist IDList `yaml:"whitelist" toml:"whitelist"`

	// WhitelistFile lists IDs one per line. It takes precedence over
	// Whitelist.
	WhitelistFile string `yaml:"whitelist_file" toml:"whitelist_file"`

	// Highlight lists ID tokens drawn in colour, e.g. "0xF6" or "246".
	Highlight TokenList `yaml:"highlight" toml:"highlight"`

	// HighlightFile lists highlight tokens separated by whitespace. It
	// takes precedence over Highlight.
	HighlightFile string `yaml:"highlight_file" toml:"highlight_file"`

	// View is the initial terminal view: static, scroll or log.
	View string `yaml:"view" toml:"view"`

	// HTTPAddr enables the web dashboard on this address.
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// Title is shown by the web dashboard.
	Title string `yaml:"title" toml:"title"`

	// Record appends every accepted frame to a capture file.
	Record RecordConfig `yaml:"record" toml:"record"`

	// HistorySize is the number of frames kept for the scroll view.
	HistorySize int `yaml:"history_size" toml:"history_size"`

	// MaxLineLength bounds one input line in bytes.
	MaxLineLength int `yaml:"max_line_length" toml:"max_line_length"`
}

// ReplayConfig selects a capture to play back.
type ReplayConfig struct {
	// Path is the capture file. Supports ${VAR} substitution.
	Path string `yaml:"path" toml:"path"`

	// Format is cbor or msgpack. Empty picks by extension.
	Format string `yaml:"format" toml:"format"`

	// Pace spaces frames by their recorded timestamps.
	Pace bool `yaml:"pace" toml:"pace"`
}

// RecordConfig selects where accepted frames are recorded.
type RecordConfig struct {
	// Path is the capture file, opened for append.
	Path string `yaml:"path" toml:"path"`

	// Format is cbor or msgpack. Empty picks by extension.
	Format string `yaml:"format" toml:"format"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, which the TOML
// decoder uses.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// IDList is a list of CAN IDs written as numbers or prefixed strings.
type IDList []uint32

// UnmarshalYAML implements yaml.Unmarshaler for IDList.
func (l *IDList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("whitelist must be a list, got %v", node.Tag)
	}
	ids := make(IDList, 0, len(node.Content))
	for i, item := range node.Content {
		id, err := ParseID(item.Value)
		if err != nil {
			return fmt.Errorf("whitelist[%d]: %w", i, err)
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler for IDList.
func (l *IDList) UnmarshalTOML(v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("whitelist must be an array, got %T", v)
	}
	ids := make(IDList, 0, len(items))
	for i, item := range items {
		var s string
		switch x := item.(type) {
		case int64:
			s = strconv.FormatInt(x, 10)
		case string:
			s = x
		default:
			return fmt.Errorf("whitelist[%d]: unsupported value %v", i, item)
		}
		id, err := ParseID(s)
		if err != nil {
			return fmt.Errorf("whitelist[%d]: %w", i, err)
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// TokenList is a list of highlight tokens. Numbers are kept as written in
// YAML and rendered in decimal from TOML.
type TokenList []string

// UnmarshalYAML implements yaml.Unmarshaler for TokenList.
func (l *TokenList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("highlight must be a list, got %v", node.Tag)
	}
	tokens := make(TokenList, 0, len(node.Content))
	for _, item := range node.Content {
		if t := strings.TrimSpace(item.Value); t != "" {
			tokens = append(tokens, t)
		}
	}
	*l = tokens
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler for TokenList.
func (l *TokenList) UnmarshalTOML(v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("highlight must be an array, got %T", v)
	}
	tokens := make(TokenList, 0, len(items))
	for i, item := range items {
		switch x := item.(type) {
		case int64:
			tokens = append(tokens, strconv.FormatInt(x, 10))
		case string:
			if t := strings.TrimSpace(x); t != "" {
				tokens = append(tokens, t)
			}
		default:
			return fmt.Errorf("highlight[%d]: unsupported value %v", i, item)
		}
	}
	*l = tokens
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns a Config with every default applied and no source.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a configuration file.
//
// Files ending in .toml are parsed as TOML, .yaml and .yml as YAML.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml":
		return Parse(data)
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Parse parses YAML configuration data, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg.finish()
}

// ParseTOML parses TOML configuration data, applies defaults and validates.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	c.applyDefaults()
	if err := c.expandAndValidate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = defaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.View == "" {
		c.View = ViewStatic
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = defaultMaxLineLength
	}
}

// Validate checks a Config that was filled in by hand, for example after
// command line flags were applied.
func (c *Config) Validate() error {
	c.applyDefaults()
	return c.expandAndValidate()
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	paths := []struct {
		name string
		v    *string
	}{
		{"device", &c.Device},
		{"file", &c.File},
		{"replay.path", &c.Replay.Path},
		{"whitelist_file", &c.WhitelistFile},
		{"highlight_file", &c.HighlightFile},
		{"record.path", &c.Record.Path},
		{"http_addr", &c.HTTPAddr},
	}
	for _, p := range paths {
		expanded, err := expandEnvVars(*p.v)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		*p.v = strings.TrimSpace(expanded)
	}

	sources := 0
	for _, s := range []string{c.Device, c.File, c.Replay.Path} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("device, file and replay.path are mutually exclusive")
	}

	if c.BaudRate < 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if d := c.ReadTimeout.Duration(); d <= 0 || d > maxReadTimeout {
		return fmt.Errorf("read_timeout must be between 0 and %s, got %s", maxReadTimeout, d)
	}

	switch c.View {
	case ViewStatic, ViewScroll, ViewLog:
	default:
		return fmt.Errorf("view must be %s, %s or %s, got %q", ViewStatic, ViewScroll, ViewLog, c.View)
	}

	if c.Replay.Format != "" {
		if _, err := capture.ParseFormat(c.Replay.Format); err != nil {
			return fmt.Errorf("replay.format: %w", err)
		}
	} else if c.Replay.Path != "" {
		if _, err := capture.FormatFromPath(c.Replay.Path); err != nil {
			return fmt.Errorf("replay.path: %w", err)
		}
	}
	if c.Replay.Pace && c.Replay.Path == "" {
		return errors.New("replay.pace requires replay.path")
	}

	if c.Record.Format != "" {
		if _, err := capture.ParseFormat(c.Record.Format); err != nil {
			return fmt.Errorf("record.format: %w", err)
		}
	} else if c.Record.Path != "" {
		if _, err := capture.FormatFromPath(c.Record.Path); err != nil {
			return fmt.Errorf("record.path: %w", err)
		}
	}

	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.MaxLineLength < minMaxLineLength {
		return fmt.Errorf("max_line_length must be at least %d, got %d", minMaxLineLength, c.MaxLineLength)
	}

	return nil
}
