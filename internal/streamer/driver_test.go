// ABOUTME: Tests for the streaming driver
// ABOUTME: Uses an in-memory channel to check ordering, cancellation and close-once
package streamer

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/virtual-audio-driver/micfeed/internal/pipe"
	"github.com/virtual-audio-driver/micfeed/internal/waveform"
)

// fakeChannel records writes and fails once failAfter writes have succeeded
type fakeChannel struct {
	mu        sync.Mutex
	writes    [][]byte
	failAfter int
	closes    int
}

func (f *fakeChannel) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		return pipe.ErrWriteFailed
	}
	if f.failAfter > 0 && len(f.writes) >= f.failAfter {
		return pipe.ErrWriteFailed
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.writes = append(f.writes, buf)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) snapshot() ([][]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.closes
}

func openerFor(ch Channel) Opener {
	return func() (Channel, error) { return ch, nil }
}

func shortScript() Script {
	return Script{
		Steps: []Step{
			{Request: waveform.Request{Kind: waveform.Tone, FrequencyHz: 440, Duration: 10 * time.Millisecond}},
			{Request: waveform.Request{Kind: waveform.Silence, Duration: 5 * time.Millisecond}},
			{Request: waveform.Request{Kind: waveform.Noise, Duration: 20 * time.Millisecond}},
		},
	}
}

func testGenerator() *waveform.Generator {
	return waveform.NewGenerator(rand.New(rand.NewPCG(1, 2)))
}

func TestStartFailure(t *testing.T) {
	openErr := errors.New("boom")
	d := New(func() (Channel, error) { return nil, openErr }, Config{Script: shortScript()})

	if err := d.Start(); !errors.Is(err, openErr) {
		t.Fatalf("expected opener error, got %v", err)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if d.Stats().LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestRunBeforeStart(t *testing.T) {
	d := New(openerFor(&fakeChannel{}), Config{Script: shortScript()})
	if err := d.Run(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if d.State() != Idle {
		t.Errorf("expected Idle, got %v", d.State())
	}
}

func TestStartTwice(t *testing.T) {
	d := New(openerFor(&fakeChannel{}), Config{Script: shortScript()})
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	d.Stop()
}

func TestRunStreamsInOrderUntilCancelled(t *testing.T) {
	ch := &fakeChannel{}
	d := New(openerFor(ch), Config{Script: shortScript(), Generator: testGenerator()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []Event
	d.AddObserver(func(ev Event) {
		events = append(events, ev)
		if len(events) == 5 {
			cancel()
		}
	})

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if d.State() != Started {
		t.Fatalf("expected Started, got %v", d.State())
	}

	if err := d.Run(ctx); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}

	writes, closes := ch.snapshot()
	if len(writes) != 5 {
		t.Errorf("expected 5 writes, got %d", len(writes))
	}
	if closes != 1 {
		t.Errorf("expected 1 close, got %d", closes)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}

	// 10ms tone, 5ms silence, 20ms noise, then the cycle repeats
	wantBytes := []int{441 * 4, 220 * 4, 882 * 4, 441 * 4, 220 * 4}
	for i, w := range writes {
		if len(w) != wantBytes[i] {
			t.Errorf("write %d: expected %d bytes, got %d", i, wantBytes[i], len(w))
		}
	}

	if events[3].Cycle != 2 || events[3].Index != 0 {
		t.Errorf("expected fourth write to start cycle 2, got cycle %d index %d", events[3].Cycle, events[3].Index)
	}

	stats := d.Stats()
	if stats.Steps != 5 {
		t.Errorf("expected 5 steps in stats, got %d", stats.Steps)
	}
	var total int64
	for _, w := range wantBytes {
		total += int64(w)
	}
	if stats.Bytes != total {
		t.Errorf("expected %d bytes in stats, got %d", total, stats.Bytes)
	}
}

func TestRunWriteFailureClosesOnce(t *testing.T) {
	ch := &fakeChannel{failAfter: 2}
	d := New(openerFor(ch), Config{Script: shortScript(), Generator: testGenerator()})

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := d.Run(context.Background())
	if !errors.Is(err, pipe.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}

	d.Stop()
	d.Stop()

	writes, closes := ch.snapshot()
	if len(writes) != 2 {
		t.Errorf("expected 2 successful writes, got %d", len(writes))
	}
	if closes != 1 {
		t.Errorf("expected exactly 1 close, got %d", closes)
	}
	if d.Stats().LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestRunCancelledDuringPause(t *testing.T) {
	ch := &fakeChannel{}
	script := Script{Steps: []Step{
		{Request: waveform.Request{Kind: waveform.Silence, Duration: time.Millisecond}, Pause: time.Hour},
	}}
	d := New(openerFor(ch), Config{Script: script})

	ctx, cancel := context.WithCancel(context.Background())
	d.AddObserver(func(Event) { cancel() })

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, closes := ch.snapshot(); closes != 1 {
		t.Errorf("expected 1 close, got %d", closes)
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	ch := &fakeChannel{}
	d := New(openerFor(ch), Config{Script: shortScript()})
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	writes, closes := ch.snapshot()
	if len(writes) != 0 {
		t.Errorf("expected no writes, got %d", len(writes))
	}
	if closes != 1 {
		t.Errorf("expected 1 close, got %d", closes)
	}
}

func TestRunZeroDurationStep(t *testing.T) {
	ch := &fakeChannel{}
	script := Script{Steps: []Step{
		{Request: waveform.Request{Kind: waveform.Tone, FrequencyHz: 440}},
		{Request: waveform.Request{Kind: waveform.Silence, Duration: time.Millisecond}},
	}}
	d := New(openerFor(ch), Config{Script: script})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	count := 0
	d.AddObserver(func(Event) {
		count++
		if count == 2 {
			cancel()
		}
	})

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Run(ctx); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	writes, _ := ch.snapshot()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if len(writes[0]) != 0 {
		t.Errorf("expected empty write for zero duration, got %d bytes", len(writes[0]))
	}
	if len(writes[1]) != 44*4 {
		t.Errorf("expected %d bytes, got %d", 44*4, len(writes[1]))
	}
}

func TestRunSkipsFailedClip(t *testing.T) {
	ch := &fakeChannel{}
	script := Script{Steps: []Step{
		{Request: waveform.Request{Kind: waveform.Clip, Path: "/nonexistent/clip.flac"}},
		{Request: waveform.Request{Kind: waveform.Silence, Duration: time.Millisecond}},
	}}
	d := New(openerFor(ch), Config{Script: script})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.AddObserver(func(Event) { cancel() })

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Run(ctx); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	writes, _ := ch.snapshot()
	if len(writes) != 1 {
		t.Fatalf("expected only the silence write, got %d", len(writes))
	}
	if d.Stats().LastError == "" {
		t.Error("expected clip failure to be recorded")
	}
}

func TestStopBeforeRun(t *testing.T) {
	ch := &fakeChannel{}
	d := New(openerFor(ch), Config{Script: shortScript()})
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	d.Stop()
	if err := d.Run(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted after Stop, got %v", err)
	}
	if _, closes := ch.snapshot(); closes != 1 {
		t.Errorf("expected 1 close, got %d", closes)
	}
}

func TestStopNeverStarted(t *testing.T) {
	d := New(openerFor(&fakeChannel{}), Config{})
	if err := d.Stop(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, "idle"},
		{Started, "started"},
		{Streaming, "streaming"},
		{Stopped, "stopped"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if tt.state.String() != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, tt.state.String())
		}
	}
}

// blockingChannel blocks every write until Close
type blockingChannel struct {
	closed  chan struct{}
	writing chan struct{}
	once    sync.Once
	closes  int
	mu      sync.Mutex
}

func newBlockingChannel() *blockingChannel {
	return &blockingChannel{closed: make(chan struct{}), writing: make(chan struct{}, 1)}
}

func (b *blockingChannel) Write(p []byte) error {
	select {
	case b.writing <- struct{}{}:
	default:
	}
	<-b.closed
	return pipe.ErrWriteFailed
}

func (b *blockingChannel) Close() error {
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestStopReleasesBlockedWrite(t *testing.T) {
	ch := newBlockingChannel()
	d := New(openerFor(ch), Config{Script: shortScript()})
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-ch.writing:
	case <-time.After(5 * time.Second):
		t.Fatal("driver never wrote")
	}

	cancel()
	d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil after cancel and stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closes != 1 {
		t.Errorf("expected 1 close, got %d", ch.closes)
	}
}
