package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lagmon/internal/models"
)

// EnvPrefix prefixes environment overrides, e.g. LAGMON_PROBE_METHOD
const EnvPrefix = "LAGMON"

// ErrNotFound is returned by Load when the config file does not exist
var ErrNotFound = errors.New("config file not found")

// Load reads the config file at path, applying defaults, LAGMON_* environment
// variables and changed flags from flags (which may be nil). An empty path
// loads defaults only.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := BindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}

	extra, err := extraTargets(flags)
	if err != nil {
		return nil, err
	}
	known := cfg.heldAddresses()
	for _, t := range extra {
		key := addressKey(t.Address)
		if !known[key] {
			cfg.Targets = append(cfg.Targets, t)
			known[key] = true
		}
	}

	return cfg, nil
}

// LoadOrDefault is Load, falling back to defaults when the file is missing
func LoadOrDefault(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Load(path, flags)
	if errors.Is(err, ErrNotFound) {
		return Load("", flags)
	}
	return cfg, err
}

// addressKey normalizes an address for duplicate checks. Malformed input is
// kept as is so Validate reports it.
func addressKey(address string) string {
	if a, err := models.NormalizeAddress(address); err == nil {
		return a
	}
	return address
}

// heldAddresses returns the addresses loaded by the targets list or by a
// diagram slot whose role no listed target claims
func (c *Config) heldAddresses() map[string]bool {
	held := make(map[string]bool)
	claimed := make(map[models.Role]bool)
	for _, t := range c.Targets {
		held[addressKey(t.Address)] = true
		if role, err := models.ParseRole(t.Role); err == nil {
			claimed[role] = true
		}
	}
	for _, slot := range c.Diagram.slots() {
		if slot.address != "" && !claimed[slot.role] {
			held[addressKey(slot.address)] = true
		}
	}
	return held
}
