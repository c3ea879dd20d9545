package clock

import "time"

// PIDConfig holds tunable gains and clamps for the adaptive decode-pacing
// controller. Zero-valued fields get sensible defaults via NewPID.
type PIDConfig struct {
	Kp, Ki, Kd         float64
	Target             float64 // goal fill ratio, clamped to [0.1, 0.9]
	BaseFrameDuration  time.Duration
	MinSleep, MaxSleep time.Duration
}

func (c PIDConfig) clampedTarget() float64 {
	t := c.Target
	if t < 0.1 {
		t = 0.1
	}
	if t > 0.9 {
		t = 0.9
	}
	return t
}

// PID is Station's adaptive decode-pacing controller. It reads Tower's
// buffer fill ratio and produces an additive adjustment to the base frame
// sleep. Sign convention: error = target - ratio, and positive error
// (buffer low) lengthens sleep, slowing decode. That reads backwards until
// you account for Clock A already running ahead of Tower's consumption in
// steady state (pre-fill done): slowing Station lets Tower's tick loop
// drain the backlog toward target without starving it when Station is
// fast. Output is ADDED to BaseFrameDuration, not subtracted.
type PID struct {
	cfg      PIDConfig
	integral float64
	prevErr  float64
	hasPrev  bool
}

// NewPID returns a PID with defaults filled in for zero-valued fields.
func NewPID(cfg PIDConfig) *PID {
	if cfg.MaxSleep == 0 {
		cfg.MaxSleep = 100 * time.Millisecond
	}
	if cfg.Target == 0 {
		cfg.Target = 0.5
	}
	return &PID{cfg: cfg}
}

// Next computes the adjusted sleep duration for one frame given the latest
// Tower buffer ratio and the elapsed time since the previous call. dt < 1ms
// disables the derivative term.
func (p *PID) Next(ratio float64, dt time.Duration) time.Duration {
	target := p.cfg.clampedTarget()
	errVal := target - ratio

	pTerm := p.cfg.Kp * errVal

	dtSec := dt.Seconds()
	var dTerm float64
	if dt >= time.Millisecond && p.hasPrev {
		dTerm = p.cfg.Kd * (errVal - p.prevErr) / dtSec
	}

	// Tentatively integrate, then clamp the final output; anti-windup pauses
	// accumulation only when the clamp is what limited the output.
	tentativeIntegral := p.integral + errVal*dtSec
	iTerm := p.cfg.Ki * tentativeIntegral

	raw := p.cfg.BaseFrameDuration + time.Duration((pTerm+iTerm+dTerm)*float64(time.Second))
	clamped := raw
	if clamped < p.cfg.MinSleep {
		clamped = p.cfg.MinSleep
	}
	if clamped > p.cfg.MaxSleep {
		clamped = p.cfg.MaxSleep
	}

	if clamped == raw {
		// Output wasn't clamped: safe to commit the integral accumulation.
		p.integral = tentativeIntegral
	}
	p.prevErr = errVal
	p.hasPrev = true
	return clamped
}

// Reset clears integral and derivative history. Called when Tower is
// unreachable (fall back to base Clock-A sleep) or at segment start.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.hasPrev = false
}
