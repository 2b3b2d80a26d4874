// ABOUTME: Streaming driver that cycles through a script and writes PCM to the channel
// ABOUTME: Owns the channel for its lifetime and closes it exactly once
package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/virtual-audio-driver/micfeed/internal/waveform"
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/encode"
	"go.uber.org/zap"
)

// State is the driver lifecycle position
type State int32

const (
	Idle State = iota
	Started
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Started:
		return "started"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotStarted is returned by Run when Start has not succeeded
	ErrNotStarted = errors.New("driver not started")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("driver already started")
)

// Channel is the byte sink the driver streams into. *pipe.Writer satisfies it.
type Channel interface {
	Write(p []byte) error
	Close() error
}

// Opener creates the channel on Start
type Opener func() (Channel, error)

// Event describes one successful write. Data is the exact bytes written and
// must not be modified.
type Event struct {
	Cycle  int
	Index  int
	Step   Step
	Buffer audio.PCMBuffer
	Data   []byte
	Bytes  int
}

// Observer is called on the streaming goroutine after each successful write.
// It must return quickly.
type Observer func(Event)

// Stats is a snapshot of driver progress
type Stats struct {
	State     State
	Cycle     int
	Steps     int64
	Bytes     int64
	Audio     time.Duration
	Current   string
	LastError string
	StartedAt time.Time
}

// Config configures a Driver
type Config struct {
	Script    Script
	Generator *waveform.Generator
	Logger    *zap.Logger
}

// Driver streams a Script into a Channel until cancelled or the channel fails
type Driver struct {
	open   Opener
	script Script
	gen    *waveform.Generator
	log    *zap.Logger

	state     atomic.Int32
	ch        Channel
	closeOnce sync.Once
	closeErr  error

	observersMu sync.RWMutex
	observers   []Observer

	statsMu sync.Mutex
	stats   Stats
}

// New creates an idle driver. A zero Script selects DefaultScript.
func New(open Opener, cfg Config) *Driver {
	if len(cfg.Script.Steps) == 0 {
		cfg.Script = DefaultScript()
	}
	if cfg.Generator == nil {
		cfg.Generator = waveform.NewGenerator(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	d := &Driver{
		open:   open,
		script: cfg.Script,
		gen:    cfg.Generator,
		log:    cfg.Logger,
	}

	for i, step := range d.script.Steps {
		if step.Request.AboveNyquist(audio.DefaultFormat) {
			d.log.Warn("frequency at or above Nyquist will alias",
				zap.Int("step", i+1),
				zap.Float64("frequency_hz", step.Request.FrequencyHz),
				zap.Float64("nyquist_hz", audio.DefaultFormat.Nyquist()))
		}
	}
	return d
}

// Script returns the script being streamed
func (d *Driver) Script() Script {
	return d.script
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.statsMu.Lock()
	d.stats.State = s
	d.statsMu.Unlock()
}

// Stats returns a snapshot of progress
func (d *Driver) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	s := d.stats
	s.State = d.State()
	return s
}

// AddObserver registers fn to receive every successful write
func (d *Driver) AddObserver(fn Observer) {
	d.observersMu.Lock()
	d.observers = append(d.observers, fn)
	d.observersMu.Unlock()
}

// Start creates the channel. On failure the driver is Stopped and the
// opener's error is returned.
func (d *Driver) Start() error {
	if !d.state.CompareAndSwap(int32(Idle), int32(Started)) {
		return ErrAlreadyStarted
	}

	ch, err := d.open()
	if err != nil {
		d.recordError(err)
		d.setState(Stopped)
		return err
	}

	d.ch = ch
	d.setState(Started)
	return nil
}

// Run streams until ctx is cancelled (returns nil) or a write fails (returns
// the write error). Cancellation is observed between steps and during pauses.
// The channel is closed before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(Started), int32(Streaming)) {
		return ErrNotStarted
	}
	defer d.Stop()

	d.statsMu.Lock()
	d.stats.State = Streaming
	d.stats.StartedAt = time.Now()
	d.statsMu.Unlock()

	d.log.Info("streaming started",
		zap.Int("steps", len(d.script.Steps)),
		zap.Duration("cycle_audio", d.script.AudioDuration()))

	for cycle := 1; ; cycle++ {
		d.statsMu.Lock()
		d.stats.Cycle = cycle
		d.statsMu.Unlock()
		d.log.Debug("cycle started", zap.Int("cycle", cycle))

		for i, step := range d.script.Steps {
			if ctx.Err() != nil {
				d.log.Info("streaming cancelled")
				return nil
			}

			if err := d.send(cycle, i, step); err != nil {
				// Stop from another goroutine fails the blocked write
				if ctx.Err() != nil {
					d.log.Info("streaming cancelled")
					return nil
				}
				d.recordError(err)
				d.log.Error("streaming stopped", zap.Error(err))
				return err
			}

			if !sleep(ctx, step.Pause) {
				d.log.Info("streaming cancelled")
				return nil
			}
		}

		if !sleep(ctx, d.script.CyclePause) {
			d.log.Info("streaming cancelled")
			return nil
		}
	}
}

// send generates one step and writes it. Generation failures are logged and
// the step is skipped; only channel failures are returned.
func (d *Driver) send(cycle, index int, step Step) error {
	label := step.Request.String()

	d.statsMu.Lock()
	d.stats.Current = label
	d.statsMu.Unlock()

	buf, err := d.gen.Generate(step.Request)
	if err != nil {
		d.recordError(err)
		d.log.Warn("skipping step", zap.String("step", label), zap.Error(err))
		return nil
	}

	data, err := encode.EncodeBuffer(buf)
	if err != nil {
		d.recordError(err)
		d.log.Warn("skipping step", zap.String("step", label), zap.Error(err))
		return nil
	}

	if err := d.ch.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", label, err)
	}

	d.statsMu.Lock()
	d.stats.Steps++
	d.stats.Bytes += int64(len(data))
	d.stats.Audio += buf.Duration()
	d.statsMu.Unlock()

	d.log.Info("sent",
		zap.Int("bytes", len(data)),
		zap.Duration("duration", buf.Duration()),
		zap.String("step", label))

	ev := Event{Cycle: cycle, Index: index, Step: step, Buffer: buf, Data: data, Bytes: len(data)}
	d.observersMu.RLock()
	for _, fn := range d.observers {
		fn(ev)
	}
	d.observersMu.RUnlock()
	return nil
}

// Stop closes the channel once and moves the driver to Stopped. A write in
// progress fails; call Stop after cancelling Run's context so Run treats
// that as cancellation.
func (d *Driver) Stop() error {
	d.closeOnce.Do(func() {
		if d.ch != nil {
			d.closeErr = d.ch.Close()
			if d.closeErr != nil {
				d.log.Warn("channel close failed", zap.Error(d.closeErr))
			}
		}
	})
	d.setState(Stopped)
	return d.closeErr
}

func (d *Driver) recordError(err error) {
	d.statsMu.Lock()
	d.stats.LastError = err.Error()
	d.statsMu.Unlock()
}

// sleep waits for d or until ctx is done. It reports whether the full
// pause elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
