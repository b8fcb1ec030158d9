// Package netdiag runs best-effort ping and route-trace commands against
// the TTS API host and returns their output as text for metadata records.
package netdiag

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultHost is probed when no usable base URL is given.
const DefaultHost = "api.elevenlabs.io"

const (
	DefaultPingTimeout  = 5 * time.Second
	DefaultTraceTimeout = 10 * time.Second
	DefaultMaxHops      = 10
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return string(out), err
	}
	return string(out), nil
}

// Result holds the two diagnostic text blocks. Both are always non-empty
// and end with a newline.
type Result struct {
	Ping  string
	Trace string
}

// Probe runs the diagnostics.
type Probe struct {
	Runner       Runner
	GOOS         string
	PingTimeout  time.Duration
	TraceTimeout time.Duration
	MaxHops      int
}

// NewProbe returns a Probe for the current platform.
func NewProbe() *Probe {
	return &Probe{
		Runner:       ExecRunner{},
		GOOS:         runtime.GOOS,
		PingTimeout:  DefaultPingTimeout,
		TraceTimeout: DefaultTraceTimeout,
		MaxHops:      DefaultMaxHops,
	}
}

// Hostname extracts the host of baseURL, or DefaultHost when baseURL is
// empty, unparseable or has no host.
func Hostname(baseURL string) string {
	if baseURL == "" {
		return DefaultHost
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return DefaultHost
	}
	return u.Hostname()
}

// Run probes the host of baseURL. Command failures and timeouts are
// reported inside the result text, never as an error.
func (p *Probe) Run(ctx context.Context, baseURL string) Result {
	host := Hostname(baseURL)

	name, args := p.pingCommand(host)
	ping := p.run(ctx, p.PingTimeout, name, args...)

	name, args = p.traceCommand(host)
	trace := p.run(ctx, p.TraceTimeout, name, args...)

	return Result{
		Ping:  normalize(ping, "No ping result"),
		Trace: normalize(trace, "No tracert result"),
	}
}

func (p *Probe) pingCommand(host string) (string, []string) {
	if p.GOOS == "windows" {
		return "ping", []string{"-n", "1", host}
	}
	return "ping", []string{"-c", "1", host}
}

func (p *Probe) traceCommand(host string) (string, []string) {
	hops := p.MaxHops
	if hops <= 0 {
		hops = DefaultMaxHops
	}
	if p.GOOS == "windows" {
		return "tracert", []string{"-h", strconv.Itoa(hops), host}
	}
	return "traceroute", []string{"-m", strconv.Itoa(hops), host}
}

func (p *Probe) run(ctx context.Context, timeout time.Duration, name string, args ...string) string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, name, args...)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%s timed out after %s: %w", name, timeout, ctx.Err())
		}
		return fmt.Sprintf("Error:\n%s %s: %v\n", name, strings.Join(args, " "), err)
	}
	return out
}

func normalize(s, missing string) string {
	if strings.TrimSpace(s) == "" {
		return missing + "\n"
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
