package ping

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagmon/internal/models"
)

func TestParsePingOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected float64
	}{
		{
			name:     "macOS individual response",
			output:   "64 bytes from 8.8.8.8: icmp_seq=0 ttl=118 time=44.347 ms",
			expected: 44.347,
		},
		{
			name:     "macOS summary line",
			output:   "round-trip min/avg/max/stddev = 44.347/44.347/44.347/0.000 ms",
			expected: 44.347,
		},
		{
			name:     "Linux individual response",
			output:   "64 bytes from 8.8.8.8: icmp_seq=0 ttl=118 time=12.3 ms",
			expected: 12.3,
		},
		{
			name:     "Linux iputils summary line",
			output:   "rtt min/avg/max/mdev = 12.3/12.5/12.7/0.100 ms",
			expected: 12.5,
		},
		{
			name:     "busybox summary line",
			output:   "round-trip min/avg/max = 12.3/12.3/12.3 ms",
			expected: 12.3,
		},
		{
			name:     "Windows response",
			output:   "Reply from 8.8.8.8: bytes=32 time=15ms TTL=118",
			expected: 15,
		},
		{
			name:     "Windows sub-millisecond",
			output:   "Reply from 8.8.8.8: bytes=32 time<1ms TTL=118",
			expected: 1,
		},
		{
			name:     "No match",
			output:   "ping: unknown host example.invalid",
			expected: 0,
		},
		{
			name:     "Empty output",
			output:   "",
			expected: 0,
		},
		{
			name: "Multiple lines with macOS output",
			output: `PING 8.8.8.8 (8.8.8.8): 56 data bytes
64 bytes from 8.8.8.8: icmp_seq=0 ttl=118 time=44.347 ms

--- 8.8.8.8 ping statistics ---
1 packets transmitted, 1 packets received, 0.0% packet loss
round-trip min/avg/max/stddev = 44.347/44.347/44.347/0.000 ms`,
			expected: 44.347,
		},
		{
			name:     "High precision RTT",
			output:   "64 bytes from 8.8.8.8: icmp_seq=0 ttl=118 time=123.456 ms",
			expected: 123.456,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parsePingOutput(tt.output)
			if result != tt.expected {
				t.Errorf("parsePingOutput(%q) = %v, want %v", tt.output, result, tt.expected)
			}
		})
	}
}

func TestNewSelectsMethod(t *testing.T) {
	p, err := New(Options{Method: MethodTCP, TCPPort: 53})
	require.NoError(t, err)
	assert.IsType(t, &TCPPinger{}, p)

	p, err = New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &ICMPPinger{}, p)

	p, err = New(Options{Method: MethodExec})
	require.NoError(t, err)
	assert.IsType(t, &ExecPinger{}, p)

	_, err = New(Options{Method: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestTCPPingerReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s := NewTCP(port).Probe(context.Background(), "127.0.0.1", time.Second)

	assert.True(t, s.Success, "error: %s", s.Error)
	assert.GreaterOrEqual(t, s.RTT, 0.0)
	assert.Empty(t, s.Failure)
	assert.False(t, s.Timestamp.IsZero())
}

func TestTCPPingerClosedPortIsLoss(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := NewTCP(0).Probe(context.Background(), addr, time.Second)
	assert.False(t, s.Success)
	assert.True(t, s.Loss())
	assert.Equal(t, models.FailureUnreachable, s.Failure)
	assert.Zero(t, s.RTT)
}

func TestTCPPingerRespectsTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network timeout test in short mode")
	}

	// 192.0.2.0/24 is TEST-NET-1 and should never answer
	started := time.Now()
	s := NewTCP(9).Probe(context.Background(), "192.0.2.1", 200*time.Millisecond)
	assert.False(t, s.Success)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestExecPingerPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ping integration test in short mode")
	}

	if _, err := exec.LookPath("ping"); err != nil {
		t.Skip("ping binary not available on PATH")
	}

	pinger := NewExec()

	result := pinger.Probe(context.Background(), "127.0.0.1", 2*time.Second)
	if !result.Success {
		t.Skipf("loopback ping failed in this environment: %s", result.Error)
	}
	t.Logf("Ping result: Success=%v, RTT=%v", result.Success, result.RTT)

	result = pinger.Probe(context.Background(), "invalid.host.that.does.not.exist", time.Second)
	if result.Success {
		t.Errorf("Expected ping to invalid host to fail, but it succeeded")
	}
	if result.RTT != 0 {
		t.Errorf("Expected RTT to be 0 for failed ping, got %v", result.RTT)
	}
}

func TestPingArgs(t *testing.T) {
	assert.Equal(t, []string{"-c", "1", "-W", "1", "10.0.0.1"}, pingArgs("linux", "10.0.0.1", 900*time.Millisecond))
	assert.Equal(t, []string{"-c", "1", "-W", "2", "10.0.0.1"}, pingArgs("darwin", "10.0.0.1", 1500*time.Millisecond))
	assert.Equal(t, []string{"-n", "1", "-w", "900", "10.0.0.1"}, pingArgs("windows", "10.0.0.1", 900*time.Millisecond))
}

func TestExecPingerFinishesWithinTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the ping binary")
	}
	bin := filepath.Join(t.TempDir(), "slowping")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 5\n"), 0o755))

	p := &ExecPinger{bin: bin}
	timeout := 300 * time.Millisecond
	started := time.Now()
	s := p.Probe(context.Background(), "10.0.0.1", timeout)

	assert.False(t, s.Success)
	assert.Equal(t, models.FailureTimeout, s.Failure)
	assert.Less(t, time.Since(started), timeout+200*time.Millisecond)
}

func TestTCPPingerKeepsExplicitPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	s := NewTCP(1).Probe(context.Background(), net.JoinHostPort("127.0.0.1", port), time.Second)
	assert.True(t, s.Success, "error: %s", s.Error)
}
