// Package ping implements reachability probes. Every prober reports failures
// as loss samples rather than errors.
package ping

import (
	"fmt"

	"lagmon/internal/models"
)

// Probe methods accepted by New
const (
	MethodICMP = "icmp"
	MethodTCP  = "tcp"
	MethodExec = "exec"
)

// Options configures the prober built by New
type Options struct {
	Method     string
	Privileged bool
	TCPPort    int
}

// New returns the prober for opts.Method
func New(opts Options) (models.Prober, error) {
	switch opts.Method {
	case MethodICMP, "":
		return NewICMP(opts.Privileged), nil
	case MethodTCP:
		return NewTCP(opts.TCPPort), nil
	case MethodExec:
		return NewExec(), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", opts.Method)
	}
}
