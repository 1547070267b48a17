package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"lagmon/internal/models"
)

// fileConfig is the on-disk layout; durations are written as strings
type fileConfig struct {
	Interval           string         `yaml:"interval"`
	Timeout            string         `yaml:"timeout"`
	Window             int            `yaml:"window"`
	LossRatioThreshold float64        `yaml:"loss_ratio_threshold"`
	MaxConcurrent      int            `yaml:"max_concurrent"`
	Probe              ProbeConfig    `yaml:"probe"`
	RetentionDays      int            `yaml:"retention_days"`
	DatabasePath       string         `yaml:"database"`
	Port               int            `yaml:"port"`
	Diagram            DiagramConfig  `yaml:"diagram"`
	Targets            []TargetConfig `yaml:"targets,omitempty"`
}

// MarshalYAML implements yaml.Marshaler
func (c Config) MarshalYAML() (interface{}, error) {
	return fileConfig{
		Interval:           formatDuration(c.Interval),
		Timeout:            formatDuration(c.Timeout),
		Window:             c.Window,
		LossRatioThreshold: c.LossRatioThreshold,
		MaxConcurrent:      c.MaxConcurrent,
		Probe:              c.Probe,
		RetentionDays:      c.RetentionDays,
		DatabasePath:       c.DatabasePath,
		Port:               c.Port,
		Diagram:            c.Diagram,
		Targets:            c.Targets,
	}, nil
}

type fileTarget struct {
	ID       string `yaml:"id,omitempty"`
	Address  string `yaml:"address"`
	Name     string `yaml:"name,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Active   *bool  `yaml:"active,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// MarshalYAML implements yaml.Marshaler
func (t TargetConfig) MarshalYAML() (interface{}, error) {
	return fileTarget{
		ID:       t.ID,
		Address:  t.Address,
		Name:     t.Name,
		Role:     t.Role,
		Active:   t.Active,
		Interval: formatDuration(t.Interval),
	}, nil
}

// Save writes cfg to path, replacing the file atomically
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".lagmon-*.yaml")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// FileStore persists runtime target and settings changes back into the
// config file. It implements models.TargetPersister and models.SettingsPersister.
type FileStore struct {
	path string

	mu  sync.Mutex
	cfg Config
}

// NewFileStore saves into path, keeping every setting of cfg except the targets
func NewFileStore(path string, cfg *Config) *FileStore {
	return &FileStore{path: path, cfg: *cfg}
}

// SaveTargets replaces the stored target list. Diagram slots are cleared
// because the list now carries the topology targets, including removals.
func (s *FileStore) SaveTargets(targets []models.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	cfg.Targets = FromTargets(targets)
	cfg.Diagram = DiagramConfig{}
	if err := Save(s.path, &cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// SaveRetentionDays replaces the stored retention
func (s *FileStore) SaveRetentionDays(days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	cfg.RetentionDays = days
	if err := Save(s.path, &cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}
