package ping

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"lagmon/internal/models"
)

// execWaitDelay bounds how long Probe waits for output after the context
// kills the ping binary
const execWaitDelay = 50 * time.Millisecond

// ExecPinger probes by running the system ping binary
type ExecPinger struct {
	bin string
}

// NewExec creates a new ExecPinger
func NewExec() *ExecPinger {
	return &ExecPinger{bin: "ping"}
}

// Probe executes a single ping to the address. The binary is killed when
// timeout elapses, so the sample is ready within timeout.
func (p *ExecPinger) Probe(ctx context.Context, address string, timeout time.Duration) models.Sample {
	sample := models.Sample{Timestamp: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.bin, pingArgs(runtime.GOOS, address, timeout)...)
	cmd.WaitDelay = execWaitDelay

	output, err := cmd.CombinedOutput()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		sample.Failure = models.FailureTimeout
		sample.Error = "ping timed out"
	case err != nil:
		sample.Failure = models.FailureUnreachable
		sample.Error = err.Error()
	default:
		sample.Success = true
		sample.RTT = parsePingOutput(string(output))
	}

	return sample
}

// pingArgs builds the platform-specific arguments for one echo request.
// Unix ping only takes whole seconds, so -W is rounded up; the context
// enforces the exact timeout.
func pingArgs(goos, address string, timeout time.Duration) []string {
	if goos == "windows" {
		return []string{"-n", "1", "-w", strconv.Itoa(int(timeout.Milliseconds())), address}
	}
	secs := int((timeout + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return []string{"-c", "1", "-W", strconv.Itoa(secs), address}
}

var rttPatterns = []*regexp.Regexp{
	regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`),
	regexp.MustCompile(`time[=<]([0-9.]+)ms`),
	regexp.MustCompile(`(?:round-trip|rtt) min/avg/max(?:/(?:stddev|mdev))? = [0-9.]+/([0-9.]+)/`),
}

// parsePingOutput parses RTT from ping output
func parsePingOutput(output string) float64 {
	// Linux/Mac: "time=XX.X ms"
	// Windows: "time=XXms" or "time<1ms"
	for _, re := range rttPatterns {
		matches := re.FindStringSubmatch(output)
		if len(matches) > 1 {
			if rtt, err := strconv.ParseFloat(matches[1], 64); err == nil {
				return rtt
			}
		}
	}

	return 0
}
