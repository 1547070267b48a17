package ping

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"time"

	"lagmon/internal/models"
)

// DefaultTCPPort is used when the address carries no port
const DefaultTCPPort = 443

// TCPPinger measures the time to complete a TCP handshake
type TCPPinger struct {
	port int
}

// NewTCP creates a TCPPinger dialing port when the address has none
func NewTCP(port int) *TCPPinger {
	if port <= 0 {
		port = DefaultTCPPort
	}
	return &TCPPinger{port: port}
}

// Probe dials the address and reports the connect time
func (p *TCPPinger) Probe(ctx context.Context, address string, timeout time.Duration) models.Sample {
	sample := models.Sample{Timestamp: time.Now()}

	target := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		target = net.JoinHostPort(address, strconv.Itoa(p.port))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	started := time.Now()
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		sample.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
			sample.Failure = models.FailureTimeout
		} else {
			sample.Failure = models.FailureUnreachable
		}
		return sample
	}
	elapsed := time.Since(started)
	_ = conn.Close()

	sample.Success = true
	sample.RTT = float64(elapsed) / float64(time.Millisecond)
	return sample
}
