package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/pkg/paths"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Format identifies a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// EnvSessionToken overrides session.token when set.
const EnvSessionToken = "STOREFRONT_SESSION_TOKEN"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"storefront.yml",
	"storefront.yaml",
	"storefront.toml",
	".storefront.yml",
	".storefront.yaml",
	".storefront.toml",
}

var knownSections = map[string]bool{
	"api":     true,
	"session": true,
	"stream":  true,
}

// Load reads and parses a single configuration file.
func Load(path string) (*Config, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	return build(raw)
}

// LoadDefault loads configuration relative to the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory:
// 1. Global config ($XDG_CONFIG_HOME/storefront/storefront.yml) - base layer
// 2. Project config (storefront.yml found walking up from startDir) - overrides global
// Both layers are optional; with neither present the defaults are returned.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	merged := map[string]interface{}{}

	if globalPath := globalConfigPath(); globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		globalRaw, err := readRaw(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
		} else {
			merged = mergeRaw(merged, globalRaw)
		}
	}

	projectPath, err := FindConfigFile(startDir)
	if err == nil && projectPath != globalConfigPath() {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		projectRaw, err := readRaw(projectPath)
		if err != nil {
			return nil, err
		}
		merged = mergeRaw(merged, projectRaw)
	}

	cfg, err := build(merged)
	if err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded and validated successfully")
	return cfg, nil
}

// LoadFromBytes parses configuration from data in the given format.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	raw, err := parseRaw(data, format)
	if err != nil {
		return nil, err
	}
	return build(raw)
}

// FindConfigFile searches for a storefront configuration file from startDir
// up to the filesystem root, then in the XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if globalPath := globalConfigPath(); globalPath != "" {
		return globalPath, nil
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// FormatForPath infers the file format from its extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

func readRaw(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	raw, err := parseRaw(data, FormatForPath(path))
	if err != nil {
		if sfErr, ok := err.(*errors.StorefrontError); ok {
			return nil, sfErr.WithDetail("path", path)
		}
		return nil, err
	}
	return raw, nil
}

func parseRaw(data []byte, format Format) (map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))

	raw := map[string]interface{}{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	default:
		return nil, errors.ConfigInvalid("unsupported config format " + string(format))
	}

	// Round-trip through JSON so every nested map has string keys.
	normalized, err := normalize(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to normalize configuration")
	}
	return normalized, nil
}

func normalize(raw map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// build validates the raw document, decodes it and applies defaults.
func build(raw map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	var cfg Config
	known := map[string]interface{}{}
	for key, value := range raw {
		if knownSections[key] {
			known[key] = value
			continue
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]interface{})
		}
		cfg.Extensions[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       durationHook(),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create config decoder")
	}
	if err := decoder.Decode(known); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	if token := os.Getenv(EnvSessionToken); token != "" {
		cfg.Session.Token = token
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs semantic checks that the schema cannot express.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return errors.ConfigInvalid("api.base_url must use http or https").
			WithDetail("base_url", c.API.BaseURL)
	}
	if c.API.Timeout < 0 || c.Stream.CredentialGrace < 0 || c.Stream.HandshakeTimeout < 0 {
		return errors.ConfigInvalid("durations must not be negative")
	}
	if c.Stream.ReadLimit < 0 {
		return errors.ConfigInvalid("stream.read_limit must be positive")
	}
	if strings.ContainsAny(c.Session.CookieName, " ;=") {
		return errors.ConfigInvalid("session.cookie_name contains invalid characters").
			WithDetail("cookie_name", c.Session.CookieName)
	}
	return nil
}

// mergeRaw deep-merges override into base; override wins on scalars.
func mergeRaw(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			if overrideMap, ok := v.(map[string]interface{}); ok {
				result[k] = mergeRaw(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// durationHook decodes duration strings into Duration and time.Duration.
func durationHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(Duration(0))
	stdType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType && to != stdType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return nil, err
			}
			if to == durationType {
				return Duration(d), nil
			}
			return d, nil
		case float64:
			// Bare numbers are seconds.
			d := time.Duration(v * float64(time.Second))
			if to == durationType {
				return Duration(d), nil
			}
			return d, nil
		}
		return data, nil
	}
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// globalConfigPath returns the first existing config file in the XDG config directory.
func globalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
