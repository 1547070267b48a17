package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to config keys
var flagKeys = map[string]string{
	"interval":       "interval",
	"timeout":        "timeout",
	"window":         "window",
	"max-concurrent": "max_concurrent",
	"probe":          "probe.method",
	"privileged":     "probe.privileged",
	"tcp-port":       "probe.tcp_port",
	"retention-days": "retention_days",
	"db":             "database",
	"port":           "port",
}

// RegisterFlags adds the config overrides to fs. Defaults shown in help come
// from Default(); unset flags never override the config file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Duration("interval", d.Interval, "Probe interval")
	fs.Duration("timeout", d.Timeout, "Probe timeout")
	fs.Int("window", d.Window, "Samples kept per target for latency and jitter")
	fs.Int("max-concurrent", d.MaxConcurrent, "Maximum probes in flight")
	fs.String("probe", d.Probe.Method, "Probe method: icmp, tcp or exec")
	fs.Bool("privileged", d.Probe.Privileged, "Use raw ICMP sockets")
	fs.Int("tcp-port", d.Probe.TCPPort, "Port dialed by the tcp probe")
	fs.Int("retention-days", d.RetentionDays, "Days of raw samples kept in the database")
	fs.String("db", d.DatabasePath, "Database path")
	fs.Int("port", d.Port, "Web server port")
	fs.StringSlice("targets", nil, "Extra custom targets to probe (comma-separated)")
}

// BindFlags makes changed flags in fs take precedence over the file
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// extraTargets returns the --targets addresses as custom targets
func extraTargets(fs *pflag.FlagSet) ([]TargetConfig, error) {
	if fs == nil || fs.Lookup("targets") == nil {
		return nil, nil
	}
	addrs, err := fs.GetStringSlice("targets")
	if err != nil {
		return nil, err
	}
	out := make([]TargetConfig, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, TargetConfig{Address: a})
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("interval", d.Interval.String())
	v.SetDefault("timeout", d.Timeout.String())
	v.SetDefault("window", d.Window)
	v.SetDefault("loss_ratio_threshold", d.LossRatioThreshold)
	v.SetDefault("max_concurrent", d.MaxConcurrent)
	v.SetDefault("probe.method", d.Probe.Method)
	v.SetDefault("probe.privileged", d.Probe.Privileged)
	v.SetDefault("probe.tcp_port", d.Probe.TCPPort)
	v.SetDefault("retention_days", d.RetentionDays)
	v.SetDefault("database", d.DatabasePath)
	v.SetDefault("port", d.Port)
	v.SetDefault("diagram.local", d.Diagram.Local)
	v.SetDefault("diagram.gateway", d.Diagram.Gateway)
	v.SetDefault("diagram.internet", d.Diagram.Internet)
}

// formatDuration writes durations the way they are read back
func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
