package encoder

import (
	"context"

	"github.com/retrowaves/retrowaves/internal/mp3buffer"
)

// Manager is the only encoder surface the rest of Tower is allowed to see:
// feed PCM in, drain MP3 out, read the operational mode, stop. Restart
// policy, process-group discipline, and FSM transitions are entirely
// internal to Supervisor.
type Manager struct {
	sup    *Supervisor
	cancel context.CancelFunc
}

// NewManager starts a supervised encoder subprocess built by newCmd,
// writing its MP3 output into mp3Out, and returns once the supervise loop
// is running in the background.
func NewManager(newCmd Command, mp3Out *mp3buffer.Buffer) *Manager {
	return NewManagerWithConfig(newCmd, mp3Out, DefaultConfig())
}

// NewManagerWithConfig is NewManager with an explicit restart/stall policy,
// wired from towerconfig.Config by cmd/tower.
func NewManagerWithConfig(newCmd Command, mp3Out *mp3buffer.Buffer, cfg Config) *Manager {
	sup := NewWithConfig(newCmd, mp3Out, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx)
	return &Manager{sup: sup, cancel: cancel}
}

// WritePCM feeds one PCM frame to the encoder. Non-blocking; dropped
// silently while the encoder has no live subprocess or its stdin is
// backlogged.
func (m *Manager) WritePCM(frame []byte) { m.sup.WritePCM(frame) }

// NextMP3Frame drains whatever MP3 frames are currently queued.
func (m *Manager) NextMP3Frame() ([][]byte, bool) { return m.sup.NextMP3Frame() }

// OperationalMode reports the encoder FSM state for /status and /metrics.
func (m *Manager) OperationalMode() State { return m.sup.OperationalMode() }

// OnStateChange registers a state-transition observer (used by /metrics to
// count restarts).
func (m *Manager) OnStateChange(f func(State)) { m.sup.OnStateChange(f) }

// Stop cancels the supervise loop and terminates the live subprocess.
func (m *Manager) Stop() {
	m.cancel()
	m.sup.Stop()
}
