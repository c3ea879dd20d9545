// Command tower runs the transmitter process: it receives PCM over a Unix
// domain socket, drives the Clock B tick loop against the source graph,
// supervises the MP3 encoder subprocess, and serves /stream plus the
// control and telemetry HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/retrowaves/retrowaves/internal/audiopump"
	"github.com/retrowaves/retrowaves/internal/bridge"
	"github.com/retrowaves/retrowaves/internal/broadcast"
	"github.com/retrowaves/retrowaves/internal/encoder"
	"github.com/retrowaves/retrowaves/internal/logging"
	"github.com/retrowaves/retrowaves/internal/metrics"
	"github.com/retrowaves/retrowaves/internal/mp3buffer"
	"github.com/retrowaves/retrowaves/internal/ringbuffer"
	"github.com/retrowaves/retrowaves/internal/sourcegraph"
	"github.com/retrowaves/retrowaves/internal/towerconfig"
	"github.com/retrowaves/retrowaves/internal/towerhttp"
)

func main() {
	flag.Parse()
	cfg := towerconfig.Load()

	ring := ringbuffer.New(cfg.BufferSize)
	mp3Buf := mp3buffer.New(mp3buffer.DefaultCapacity)

	registry := sourcegraph.NewRegistry()
	tone := sourcegraph.NewToneNode()
	silence := sourcegraph.SilenceNode{}
	registry.Register("tone", tone)
	registry.Register("silence", silence)

	var primary sourcegraph.Node
	if cfg.SilenceMP3Path != "" {
		if node, err := registry.RegisterFile("file", cfg.SilenceMP3Path); err != nil {
			log.Printf("tower: could not load default file source %q: %v", cfg.SilenceMP3Path, err)
		} else {
			primary = node
		}
	}
	switch cfg.DefaultSource {
	case "silence":
		primary = silence
	case "tone":
		primary = tone
	}

	overrides := sourcegraph.NewOverrideStack(sourcegraph.MinOverrideCapacity)
	program := sourcegraph.NewProgramNode(ring)
	graph := sourcegraph.NewGraph(program, overrides, primary)

	encCfg := encoder.Config{
		MaxRestartAttempts: cfg.EncoderRestartMax,
		BaseBackoff:        time.Duration(cfg.EncoderRestartBackoffMs) * time.Millisecond,
		// FrameInterval is scaled so FrameInterval*StallToleranceFactor equals
		// the configured frame timeout exactly, rather than introducing a
		// second tolerance knob into the encoder package.
		FrameInterval: time.Duration(cfg.FrameTimeoutMs) * time.Millisecond / encoder.StallToleranceFactor,
	}
	encMgr := encoder.NewManagerWithConfig(lameCommand(cfg), mp3Buf, encCfg)

	hub := broadcast.NewHub()
	hub.SetWriteBudget(time.Duration(cfg.ClientTimeoutMs) * time.Millisecond)
	sampler := logging.NewSampler(250 * time.Millisecond)

	started := time.Now()
	reg := metrics.New(func() float64 { return time.Since(started).Seconds() })

	srv := towerhttp.New(towerhttp.Server{
		Hub:      hub,
		Ring:     ring,
		MP3Buf:   mp3Buf,
		Encoder:  encMgr,
		Graph:    graph,
		Registry: registry,
		EventLog: towerhttp.NewEventLog(),
		Metrics:  reg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pump := audiopump.New(graph, encMgr)
	pump.SetResyncLogger(sampler)
	go pump.Run(ctx)

	receiver, err := bridge.NewReceiver(cfg.SocketPath, ring)
	if err != nil {
		log.Fatalf("tower: bind bridge socket %q: %v", cfg.SocketPath, err)
	}
	receiver.SetReadChunkSize(cfg.ReadChunkSize)
	go receiver.Serve()

	go srv.RunBackground(ctx)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: srv.Mux(),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("tower: http server stopped: %v", err)
			srv.SetAcceptDown(true)
		}
	}()
	log.Printf("tower: listening on %s, bridge at %s", httpSrv.Addr, cfg.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("tower: shutting down")

	srv.SetAcceptDown(true)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = receiver.Close()
	encMgr.Stop()
	cancel()
}

// lameCommand builds the ffmpeg-based PCM-to-MP3 encoder argv: raw signed
// 16-bit LE stereo PCM on stdin at the configured sample rate, CBR MP3 on
// stdout. ffmpeg is used rather than invoking lame directly so the same
// subprocess handles the raw-PCM framing without an intermediate WAV header.
func lameCommand(cfg *towerconfig.Config) encoder.Command {
	return func() *exec.Cmd {
		cmd := exec.Command("ffmpeg",
			"-hide_banner", "-loglevel", "error",
			"-f", "s16le",
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-ac", strconv.Itoa(cfg.Channels),
			"-i", "pipe:0",
			"-f", "mp3",
			"-b:a", strconv.Itoa(cfg.BitrateKbps)+"k",
			"pipe:1",
		)
		return cmd
	}
}
