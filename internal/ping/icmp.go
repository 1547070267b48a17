package ping

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"lagmon/internal/models"
)

// ICMPPinger sends a single ICMP echo using pro-bing. Unprivileged mode uses
// UDP ping sockets and needs net.ipv4.ping_group_range on Linux.
type ICMPPinger struct {
	privileged bool
}

// NewICMP creates an ICMPPinger
func NewICMP(privileged bool) *ICMPPinger {
	return &ICMPPinger{privileged: privileged}
}

// Probe sends one echo request and waits up to timeout for the reply
func (p *ICMPPinger) Probe(ctx context.Context, address string, timeout time.Duration) models.Sample {
	sample := models.Sample{Timestamp: time.Now()}

	pinger, err := probing.NewPinger(address)
	if err != nil {
		sample.Failure = models.FailureUnreachable
		sample.Error = err.Error()
		return sample
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		sample.Failure = models.FailureUnreachable
		sample.Error = err.Error()
		return sample
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		sample.Failure = models.FailureTimeout
		sample.Error = "no echo reply"
		return sample
	}

	sample.Success = true
	sample.RTT = float64(stats.AvgRtt) / float64(time.Millisecond)
	return sample
}
