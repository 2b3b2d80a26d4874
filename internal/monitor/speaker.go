// ABOUTME: Local speaker monitor that plays the written stream
// ABOUTME: Runs on its own goroutine and disables itself on the first output error
package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/virtual-audio-driver/micfeed/internal/streamer"
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/output"
	"go.uber.org/zap"
)

// Speaker plays written buffers on a local output device
type Speaker struct {
	out   output.Output
	log   *zap.Logger
	queue chan []int16
	done  chan struct{}
	wg    sync.WaitGroup

	disabled atomic.Bool
	closing  atomic.Bool
	once     sync.Once
}

// NewSpeaker wraps out. Call Start before registering Observe.
func NewSpeaker(out output.Output, logger *zap.Logger) *Speaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{
		out:   out,
		log:   logger,
		queue: make(chan []int16, listenerQueue),
		done:  make(chan struct{}),
	}
}

// Start opens the device at the stream format
func (s *Speaker) Start() error {
	f := audio.DefaultFormat
	if err := s.out.Open(f.SampleRate, f.Channels); err != nil {
		return fmt.Errorf("failed to open speaker: %w", err)
	}
	s.wg.Add(1)
	go s.run()
	return nil
}

// Enabled reports whether the speaker is still playing
func (s *Speaker) Enabled() bool {
	return !s.disabled.Load()
}

// Observe queues a written buffer. Buffers are dropped while the device
// is behind.
func (s *Speaker) Observe(ev streamer.Event) {
	if s.disabled.Load() || len(ev.Buffer.Samples) == 0 {
		return
	}
	select {
	case s.queue <- ev.Buffer.Samples:
	default:
		s.log.Debug("speaker behind, buffer dropped", zap.String("step", ev.Step.Request.String()))
	}
}

func (s *Speaker) run() {
	defer s.wg.Done()
	for {
		select {
		case samples := <-s.queue:
			if err := s.out.Write(samples); err != nil {
				s.disabled.Store(true)
				if !s.closing.Load() {
					s.log.Error("speaker monitor disabled", zap.Error(err))
				}
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close stops playback and releases the device
func (s *Speaker) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		s.disabled.Store(true)
		close(s.done)
		err = s.out.Close()
		s.wg.Wait()
	})
	return err
}
