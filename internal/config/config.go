// Package config loads and saves the lagmon configuration file.
package config

import (
	"errors"
	"fmt"
	"time"

	"lagmon/internal/models"
	"lagmon/internal/ping"
)

// Config holds all configuration for the monitor
type Config struct {
	Interval           time.Duration  `mapstructure:"interval"`
	Timeout            time.Duration  `mapstructure:"timeout"`
	Window             int            `mapstructure:"window"`
	LossRatioThreshold float64        `mapstructure:"loss_ratio_threshold"`
	MaxConcurrent      int            `mapstructure:"max_concurrent"`
	Probe              ProbeConfig    `mapstructure:"probe"`
	RetentionDays      int            `mapstructure:"retention_days"`
	DatabasePath       string         `mapstructure:"database"`
	Port               int            `mapstructure:"port"`
	Diagram            DiagramConfig  `mapstructure:"diagram"`
	Targets            []TargetConfig `mapstructure:"targets"`
}

// ProbeConfig selects how targets are measured
type ProbeConfig struct {
	Method     string `mapstructure:"method" yaml:"method"`
	Privileged bool   `mapstructure:"privileged" yaml:"privileged"`
	TCPPort    int    `mapstructure:"tcp_port" yaml:"tcp_port"`
}

// DiagramConfig holds the addresses of the three topology slots. An empty
// slot is not monitored.
type DiagramConfig struct {
	Local    string `mapstructure:"local" yaml:"local"`
	Gateway  string `mapstructure:"gateway" yaml:"gateway"`
	Internet string `mapstructure:"internet" yaml:"internet"`
}

// TargetConfig is one entry of the targets list
type TargetConfig struct {
	ID       string        `mapstructure:"id"`
	Address  string        `mapstructure:"address"`
	Name     string        `mapstructure:"name"`
	Role     string        `mapstructure:"role"`
	Active   *bool         `mapstructure:"active"`
	Interval time.Duration `mapstructure:"interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Interval:      time.Second,
		Timeout:       900 * time.Millisecond,
		Window:        20,
		MaxConcurrent: 32,
		Probe: ProbeConfig{
			Method:  ping.MethodICMP,
			TCPPort: ping.DefaultTCPPort,
		},
		RetentionDays: 7,
		DatabasePath:  "lagmon.db",
		Port:          8080,
		Diagram: DiagramConfig{
			Local:    "127.0.0.1",
			Gateway:  "192.168.1.1",
			Internet: "8.8.8.8",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Timeout > c.Interval {
		return fmt.Errorf("timeout (%v) must not exceed interval (%v)", c.Timeout, c.Interval)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.LossRatioThreshold < 0 || c.LossRatioThreshold > 1 {
		return fmt.Errorf("loss_ratio_threshold must be between 0 and 1")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days cannot be negative")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if _, err := ping.New(ping.Options{Method: c.Probe.Method}); err != nil {
		return err
	}
	if c.Probe.TCPPort <= 0 || c.Probe.TCPPort > 65535 {
		return fmt.Errorf("probe tcp_port must be between 1 and 65535")
	}
	_, err := c.TargetSpecs()
	return err
}

// TargetSpecs returns the targets to load: occupied diagram slots whose role
// is not claimed by an entry of the targets list, then the list itself.
func (c *Config) TargetSpecs() ([]models.TargetSpec, error) {
	var specs []models.TargetSpec
	ids := make(map[string]bool)
	addrs := make(map[string]bool)
	roles := make(map[models.Role]string)

	add := func(spec models.TargetSpec, where string) error {
		addr, err := models.NormalizeAddress(spec.Address)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if addrs[addr] {
			return fmt.Errorf("%s: duplicate address %s", where, addr)
		}
		if spec.ID != "" {
			if ids[spec.ID] {
				return fmt.Errorf("%s: duplicate id %q", where, spec.ID)
			}
			ids[spec.ID] = true
		}
		if spec.Role.IsTopology() {
			if other, ok := roles[spec.Role]; ok {
				return fmt.Errorf("%s: %w: role %s already held by %s", where, models.ErrRoleConflict, spec.Role, other)
			}
			roles[spec.Role] = where
		}
		addrs[addr] = true
		spec.Address = addr
		specs = append(specs, spec)
		return nil
	}

	listed := make([]models.TargetSpec, 0, len(c.Targets))
	claimed := make(map[models.Role]bool)
	for i, t := range c.Targets {
		role, err := models.ParseRole(t.Role)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		if t.Interval < 0 {
			return nil, fmt.Errorf("targets[%d]: interval cannot be negative", i)
		}
		claimed[role] = true
		listed = append(listed, models.TargetSpec{
			ID:       t.ID,
			Address:  t.Address,
			Name:     t.Name,
			Role:     role,
			Active:   t.Active,
			Interval: t.Interval,
		})
	}

	for _, slot := range c.Diagram.slots() {
		if slot.address == "" || claimed[slot.role] {
			continue
		}
		spec := models.TargetSpec{ID: string(slot.role), Address: slot.address, Name: slot.name, Role: slot.role}
		if err := add(spec, "diagram."+string(slot.role)); err != nil {
			return nil, err
		}
	}
	for i, spec := range listed {
		if err := add(spec, fmt.Sprintf("targets[%d]", i)); err != nil {
			return nil, err
		}
	}

	if len(specs) == 0 {
		return nil, errors.New("at least one target must be configured")
	}
	return specs, nil
}

type slot struct {
	role    models.Role
	name    string
	address string
}

func (d DiagramConfig) slots() []slot {
	return []slot{
		{models.RoleLocal, models.RoleLocal.Title(), d.Local},
		{models.RoleGateway, models.RoleGateway.Title(), d.Gateway},
		{models.RoleInternet, models.RoleInternet.Title(), d.Internet},
	}
}

// FromTargets converts registered targets back into config entries
func FromTargets(targets []models.Target) []TargetConfig {
	out := make([]TargetConfig, len(targets))
	for i, t := range targets {
		active := t.Active
		out[i] = TargetConfig{
			ID:       t.ID,
			Address:  t.Address,
			Name:     t.Name,
			Role:     string(t.Role),
			Active:   &active,
			Interval: t.Interval,
		}
	}
	return out
}
