package gateway

import (
	"context"
	"time"

	"github.com/mesudip/pg-gateway/internal/logging"
)

// HealthState classifies one candidate's health-probe result (§4.5).
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthPrimary
	HealthReplica
	HealthUnhealthy
	// HealthPrimaryNotUsed marks a candidate that reports writable but
	// lost the race to an earlier candidate in configuration order
	// (split-brain, scenario 4).
	HealthPrimaryNotUsed
)

func (s HealthState) String() string {
	switch s {
	case HealthPrimary:
		return "PRIMARY"
	case HealthReplica:
		return "REPLICA"
	case HealthUnhealthy:
		return "UNHEALTHY"
	case HealthPrimaryNotUsed:
		return "PRIMARY(not-used)"
	default:
		return "UNKNOWN"
	}
}

// ProbeResult is one candidate's classification for a single discovery
// tick, carrying the unhealthy reason through to the log line the way
// health_check.c's richer implementation does (§ SPEC_FULL supplemented
// features).
type ProbeResult struct {
	State  HealthState
	Reason string
}

// Prober probes a single candidate. internal/healthprobe implements this
// using pgx; it is an interface here purely to keep internal/gateway free
// of a driver dependency.
type Prober interface {
	Probe(ctx context.Context, candidate Candidate) ProbeResult
}

// Discovery runs the periodic primary-election loop: probe every candidate
// in order, pick the first Primary, resolve it, and update PrimaryState.
type Discovery struct {
	Candidates   []Candidate
	Prober       Prober
	State        *PrimaryState
	Metrics      *Metrics
	CheckEvery   time.Duration
	QueryTimeout time.Duration
	Log          *logging.Logger

	lastState HealthState
}

// Run probes on CheckEvery until ctx is cancelled.
func (d *Discovery) Run(ctx context.Context) {
	ticker := time.NewTicker(d.CheckEvery)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Discovery) tick(ctx context.Context) {
	chosenIdx := -1
	var chosenTarget TargetAddress
	firstReason := ""
	healthyCount := 0
	// dnsFailed is set once the first primary-reporting candidate fails
	// DNS resolution. Per §4.5 step 3, that demotes the whole cycle to
	// "no primary" -- it must not fall through to let a later candidate
	// be chosen instead, mirroring gateway.c's two-phase scan-then-resolve
	// health loop (resolution only ever runs for the one found primary).
	dnsFailed := false

	for i, cand := range d.Candidates {
		if chosenIdx >= 0 || dnsFailed {
			// Either the primary is already resolved, or this cycle is
			// already demoted to "no primary" by a failed resolution;
			// remaining candidates are still probed so the server-health
			// gauges stay accurate, but none can become the chosen primary.
			res := d.Prober.Probe(ctx, cand)
			if res.State == HealthPrimary {
				if chosenIdx >= 0 && d.Log != nil {
					d.Log.Notice().Str("candidate", cand.String()).Log("primary (not used)")
				}
			} else if res.State == HealthReplica {
				healthyCount++
			}
			continue
		}

		res := d.Prober.Probe(ctx, cand)
		switch res.State {
		case HealthPrimary:
			healthyCount++
			target, err := cand.Resolve()
			if err != nil {
				if firstReason == "" {
					firstReason = "primary " + cand.String() + " resolution failed: " + err.Error()
				}
				dnsFailed = true
				continue
			}
			chosenIdx = i
			chosenTarget = target
		case HealthReplica:
			healthyCount++
		default:
			if firstReason == "" {
				reason := res.Reason
				if reason == "" {
					reason = "not primary"
				}
				firstReason = "candidate " + cand.String() + " " + reason
			}
		}
	}

	if d.Metrics != nil {
		d.Metrics.SetServerCounts(len(d.Candidates), healthyCount)
	}

	changed, epoch := d.State.Update(chosenTarget, chosenIdx)
	newState := HealthUnhealthy
	if chosenIdx >= 0 {
		newState = HealthPrimary
	}

	if d.Log != nil && (changed || newState != d.lastState) {
		if chosenIdx >= 0 {
			d.Log.Notice().Uint64("epoch", epoch).Str("primary", chosenTarget.String()).Log("new primary")
		} else {
			reason := firstReason
			if reason == "" {
				reason = "no primary reachable"
			}
			d.Log.Warning().Uint64("epoch", epoch).Str("reason", reason).Log("no healthy primary")
		}
	}
	d.lastState = newState
}
