// ABOUTME: Entry point for micfeed, the virtual microphone test signal producer
// ABOUTME: Parses configuration, creates the pipe and streams until cancelled or disconnected
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/virtual-audio-driver/micfeed/internal/config"
	"github.com/virtual-audio-driver/micfeed/internal/discovery"
	"github.com/virtual-audio-driver/micfeed/internal/logging"
	"github.com/virtual-audio-driver/micfeed/internal/metrics"
	"github.com/virtual-audio-driver/micfeed/internal/monitor"
	"github.com/virtual-audio-driver/micfeed/internal/pipe"
	"github.com/virtual-audio-driver/micfeed/internal/streamer"
	"github.com/virtual-audio-driver/micfeed/internal/ui"
	"github.com/virtual-audio-driver/micfeed/internal/version"
	"github.com/virtual-audio-driver/micfeed/internal/waveform"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/output"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}

	cfg.ReportWarnings(os.Stderr)

	if cfg.Discover {
		return discover()
	}

	// TUI mode logs only to the file; streaming mode logs to both
	logger, closeLog, err := logging.New(logging.Options{
		File:    cfg.LogFile,
		Console: !cfg.UseTUI(),
		Debug:   cfg.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}
	defer closeLog()

	for _, w := range cfg.Warnings {
		logger.Warn("configuration", zap.Error(w))
	}

	sessionID := uuid.New().String()
	pipeName := pipe.Name(cfg.Pin, cfg.PipeDir)

	logger.Info("starting",
		zap.String("version", version.Version),
		zap.String("session", sessionID),
		zap.Int("pin", cfg.Pin),
		zap.String("pipe", pipeName))

	script, err := loadScript(cfg)
	if err != nil {
		logger.Error("invalid script", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Invalid script: %v\n", err)
		return exitFailure
	}

	driver := streamer.New(
		func() (streamer.Channel, error) { return pipe.Open(pipeName) },
		streamer.Config{
			Script:    script,
			Generator: waveform.NewGenerator(nil),
			Logger:    logger.Named("streamer"),
		},
	)

	if err := driver.Start(); err != nil {
		// the TUI has not started yet, so stderr is ours in every mode
		logger.Error("failed to create pipe", zap.String("pipe", pipeName), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to start pipe server: %v\n", err)
		return exitFailure
	}
	metrics.SetState(driver.State())
	driver.AddObserver(metrics.Observe)

	// First signal cancels; stop() restores default handling so a second
	// one kills the process even if the pipe never gets a reader.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	go func() {
		<-ctx.Done()
		stop()
		driver.Stop()
	}()

	var speaker *monitor.Speaker
	var volume *output.Oto
	if cfg.Monitor {
		volume = output.NewOto()
		volume.SetVolume(cfg.Volume)
		speaker = monitor.NewSpeaker(volume, logger.Named("speaker"))
		if err := speaker.Start(); err != nil {
			logger.Warn("speaker monitor unavailable", zap.Error(err))
			speaker = nil
		} else {
			driver.AddObserver(speaker.Observe)
			defer speaker.Close()
		}
	}

	var server *monitor.Server
	if cfg.HTTPAddr != "" {
		server = monitor.New(monitor.Config{
			Addr:      cfg.HTTPAddr,
			SessionID: sessionID,
			Name:      cfg.Name,
			Pipe:      pipeName,
			Stats:     driver.Stats,
			Logger:    logger.Named("monitor"),
		})
		addr, err := server.Start()
		if err != nil {
			logger.Warn("monitor unavailable", zap.Error(err))
			server = nil
		} else {
			driver.AddObserver(server.Observe)
			defer shutdown(server, logger)

			if cfg.MDNS {
				mdns := discovery.NewManager(discovery.Config{
					InstanceName: cfg.Name,
					Port:         portOf(addr),
					Pin:          cfg.Pin,
					Pipe:         pipeName,
					SessionID:    sessionID,
					Version:      version.Version,
					Logger:       logger.Named("mdns"),
				})
				if err := mdns.Advertise(); err != nil {
					logger.Warn("mdns advertisement failed", zap.Error(err))
				} else {
					defer mdns.Stop()
				}
			}
		}
	} else if cfg.MDNS {
		logger.Warn("-mdns needs -http-addr, not advertising")
	}

	var tui *ui.TUI
	tuiDone := make(chan struct{})
	if cfg.UseTUI() {
		ctrl := ui.NewControl()
		tui = ui.New(ui.Info{
			Pin:       cfg.Pin,
			Pipe:      pipeName,
			SessionID: sessionID,
			HTTPAddr:  cfg.HTTPAddr,
			Monitor:   speaker != nil,
			Volume:    cfg.Volume,
		}, ctrl)

		driver.AddObserver(func(ev streamer.Event) {
			tui.Send(ui.LevelMsg{Label: ev.Step.Request.String(), Peak: ui.Peak(ev.Buffer.Samples)})
		})

		go func() {
			defer close(tuiDone)
			if err := tui.Run(); err != nil {
				logger.Error("TUI failed", zap.Error(err))
			}
			cancel()
		}()
		go handleControl(ctx, ctrl, volume, cancel, logger)
		go statsLoop(ctx, driver, server, func(msg any) { tui.Send(msg) })

		defer stopTUI(tui, tuiDone)
	} else {
		fmt.Printf("%s\n", version.String())
		fmt.Printf("Using microphone pin: %d\n", cfg.Pin)
		fmt.Printf("Pipe: %s\n", pipeName)
		fmt.Println("Waiting for the driver to connect. Press Ctrl+C to stop.")
		go statsLoop(ctx, driver, server, nil)
	}

	runErr := driver.Run(ctx)
	metrics.SetState(driver.State())

	if runErr != nil {
		metrics.WriteFailuresTotal.Inc()
		logger.Error("streaming failed", zap.Error(runErr))
		if tui != nil {
			// restore the terminal before printing
			stopTUI(tui, tuiDone)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return exitFailure
	}

	logger.Info("stopped", zap.Int64("bytes", driver.Stats().Bytes))
	return exitOK
}

func stopTUI(tui *ui.TUI, done <-chan struct{}) {
	tui.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func loadScript(cfg *config.Config) (streamer.Script, error) {
	script := streamer.DefaultScript()
	if cfg.Script != "" {
		s, err := streamer.LoadScript(cfg.Script)
		if err != nil {
			return streamer.Script{}, err
		}
		script = s
	}
	if cfg.Clip != "" {
		script = script.WithClip(cfg.Clip, 100*time.Millisecond)
	}
	return script, nil
}

// handleControl applies TUI actions
func handleControl(ctx context.Context, ctrl *ui.Control, out *output.Oto, cancel context.CancelFunc, logger *zap.Logger) {
	for {
		select {
		case change := <-ctrl.Changes:
			if out != nil {
				out.SetVolume(change.Volume)
				out.SetMuted(change.Muted)
				logger.Debug("monitor volume changed", zap.Int("volume", change.Volume), zap.Bool("muted", change.Muted))
			}
		case <-ctrl.Quit:
			logger.Info("quit requested from TUI")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsLoop publishes driver progress to metrics and the TUI
func statsLoop(ctx context.Context, driver *streamer.Driver, server *monitor.Server, send func(msg any)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.SetState(driver.State())
			if send == nil {
				continue
			}
			listeners := 0
			if server != nil {
				listeners = server.Broadcaster().ListenerCount()
			}
			send(ui.StatusMsg{Stats: driver.Stats(), Listeners: listeners})
		case <-ctx.Done():
			return
		}
	}
}

func shutdown(server *monitor.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("monitor shutdown error", zap.Error(err))
	}
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// discover lists producers advertised on the LAN
func discover() int {
	instances, err := discovery.Browse(3 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		return exitFailure
	}
	if len(instances) == 0 {
		fmt.Println("No producers found")
		return exitOK
	}
	for _, inst := range instances {
		fmt.Printf("%s\t%s:%d\tpin %d\t%s\n", inst.Name, inst.Host, inst.Port, inst.Pin, inst.Pipe)
	}
	return exitOK
}
