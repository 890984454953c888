// Package main is the entry point for the terminal assistant client.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/config"
	"github.com/arpangupta1805/web-assistant/internal/controller"
	"github.com/arpangupta1805/web-assistant/internal/dictation"
	"github.com/arpangupta1805/web-assistant/internal/httpapi"
	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/internal/notify"
	"github.com/arpangupta1805/web-assistant/internal/persist"
	"github.com/arpangupta1805/web-assistant/internal/realtime"
	"github.com/arpangupta1805/web-assistant/internal/store"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/tracing"
)

const notificationTTL = 5 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting assistant client")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "web-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	clk := clock.NewSystem()

	// Open the durable history store. A broken store file degrades to an
	// in-memory session rather than refusing to start.
	var st store.Store
	bolt, err := store.OpenBolt(cfg.StorePath, cfg.StoreMaxBytes)
	if err != nil {
		log.Warn("could not open history store, conversation will not persist",
			zap.String("path", cfg.StorePath), zap.Error(err))
		st = store.NewMem(cfg.StoreMaxBytes)
	} else {
		st = bolt
		defer bolt.Close()
	}

	// Notifications print to the terminal as they arrive.
	notes := notify.NewCenter(clk, notificationTTL)
	notes.SetListener(printNotification)

	pm := persist.New(st, clk, log, persist.Options{
		Key:      cfg.StoreKey,
		Budget:   cfg.StoreBudget,
		Debounce: cfg.SaveDebounce,
	})

	fallback := httpapi.New(cfg.ServerBaseURL, cfg.CommandTimeout, log)

	ctrl := controller.New(pm, notes, clk, log, controller.Options{
		Fallback:     fallback,
		Speaker:      newSpeaker(cfg.TTSCommand, log),
		Opener:       &systemOpener{},
		AudioEnabled: cfg.AudioEnabled,
	})

	render := newRenderer(os.Stdout)
	ctrl.SetUpdateListener(render.onUpdate)
	ctrl.Load()

	// The realtime channel is optional: commands fall back to HTTP while it
	// is down, so a failed connect is a warning, not a fatal error.
	channel, err := realtime.Connect(realtime.Config{
		URL:      cfg.NATSURL,
		Token:    cfg.NATSToken,
		ClientID: cfg.ClientID,
	}, realtime.Handlers{
		OnFragment: func(frag model.Fragment) { ctrl.ApplyFragment(frag) },
		OnAction:   ctrl.HandleAction,
		OnOpenURL:  ctrl.HandleOpenURL,
		OnConnectionChange: func(connected bool) {
			if connected {
				notes.Push(notify.SeveritySuccess, "connected to assistant server")
			} else {
				notes.Push(notify.SeverityWarning, "connection lost, using HTTP fallback")
			}
		},
	}, log)
	if err != nil {
		log.Warn("realtime channel unavailable, commands use HTTP", zap.Error(err))
	} else {
		ctrl.AttachChannel(channel)
		defer channel.Close()
	}

	// Dictation feeds finalized transcripts through the same command path as
	// typed input.
	mic := &micCapture{out: os.Stdout}
	session := dictation.NewSession(mic, clk, notes, log, dictation.Config{
		SilenceTimeout: cfg.SilenceTimeout,
		AutoStop:       cfg.AutoStop,
	}, func(transcript string) {
		cmdCtx, cancel := context.WithTimeout(context.Background(), cfg.CommandTimeout)
		defer cancel()
		ctrl.SubmitCommand(cmdCtx, transcript)
	})

	// Debug listener: health and metrics, loopback only.
	debug := newDebugServer(cfg.DebugAddr)
	go func() {
		log.Info("debug listener started", zap.String("addr", cfg.DebugAddr))
		if err := debug.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("debug listener error", zap.Error(err))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("web assistant ready. Type a command, or /help for the controls.")

loop:
	for {
		select {
		case <-quit:
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !dispatch(ctx, line, cfg, ctrl, session) {
				break loop
			}
		}
	}

	log.Info("shutting down")

	session.Stop()
	ctrl.Flush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := debug.Shutdown(shutdownCtx); err != nil {
		log.Warn("debug listener shutdown failed", zap.Error(err))
	}

	log.Info("stopped")
}

// dispatch routes one input line. Lines starting with "/" are client
// controls; everything else is a command for the assistant. It returns false
// when the client should exit.
func dispatch(ctx context.Context, line string, cfg *config.Config, ctrl *controller.Controller, session *dictation.Session) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	if !strings.HasPrefix(line, "/") {
		cmdCtx, cancel := context.WithTimeout(ctx, cfg.CommandTimeout)
		defer cancel()
		ctrl.SubmitCommand(cmdCtx, line)
		return true
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch verb {
	case "/quit", "/exit":
		return false
	case "/help":
		printHelp()
	case "/clear":
		ctrl.Clear()
		fmt.Println("conversation cleared")
	case "/mute":
		ctrl.SetMuted(true)
	case "/unmute":
		ctrl.SetMuted(false)
	case "/audio":
		switch rest {
		case "on":
			ctrl.SetAudioEnabled(true)
		case "off":
			ctrl.SetAudioEnabled(false)
		default:
			fmt.Println("usage: /audio on|off")
		}
	case "/mic":
		if err := session.Toggle(); err != nil {
			fmt.Println("mic:", err)
		}
	case "/say":
		// Simulated speech recognition for terminals without a microphone:
		// each /say replaces the transcript, as live recognition would.
		session.OnTranscript(strings.TrimSpace(rest))
	case "/done":
		if err := session.Finalize(); err != nil {
			fmt.Println("mic:", err)
		}
	case "/status":
		printStatus(ctrl, session)
	default:
		fmt.Printf("unknown control %s (try /help)\n", verb)
	}
	return true
}

func printHelp() {
	fmt.Print(`controls:
  /mic          start or stop listening
  /say <text>   provide a transcript update while listening
  /done         submit the current transcript
  /mute         keep replies silent
  /unmute       read replies aloud again
  /audio on|off enable or disable audio entirely
  /clear        wipe the conversation history
  /status       show connection and dictation state
  /quit         exit
`)
}

func printStatus(ctrl *controller.Controller, session *dictation.Session) {
	conn := "down (HTTP fallback)"
	if ctrl.Connected() {
		conn = "up"
	}
	fmt.Printf("realtime channel: %s\n", conn)
	fmt.Printf("dictation: %s\n", session.State())
	if w := ctrl.Weather(); w != nil {
		fmt.Printf("weather: %.1f°C in %s\n", w.Temp, w.Location)
	}
}

func newDebugServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
