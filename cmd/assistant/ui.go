package main

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/internal/notify"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
)

// renderer prints assistant replies incrementally: streamed chunks appear as
// they arrive on a single line, finalized by a newline.
type renderer struct {
	out io.Writer

	mu      sync.Mutex
	lastID  string
	printed int
	open    bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

// onUpdate receives a snapshot of the sequence after every mutation and
// prints whatever is new in the last assistant message.
func (r *renderer) onUpdate(msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(msgs) == 0 {
		r.lastID = ""
		r.printed = 0
		r.endLineLocked()
		return
	}

	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant {
		r.endLineLocked()
		return
	}

	if last.ID != r.lastID {
		r.endLineLocked()
		r.lastID = last.ID
		r.printed = 0
		fmt.Fprint(r.out, "assistant> ")
		r.open = true
	}

	if len(last.Text) > r.printed {
		fmt.Fprint(r.out, last.Text[r.printed:])
		r.printed = len(last.Text)
	}

	if !last.Streaming {
		r.endLineLocked()
	}
}

func (r *renderer) endLineLocked() {
	if r.open {
		fmt.Fprintln(r.out)
		r.open = false
	}
}

func printNotification(n notify.Notification) {
	fmt.Printf("[%s] %s\n", n.Severity, n.Message)
}

// execSpeaker pipes reply text to an external TTS command, fire-and-forget.
type execSpeaker struct {
	command string
	logger  *logger.Logger
}

// newSpeaker returns a speaker backed by command, or a silent one when no
// command is configured.
func newSpeaker(command string, log *logger.Logger) *execSpeaker {
	return &execSpeaker{command: command, logger: log}
}

func (s *execSpeaker) Speak(text string) {
	if s.command == "" || text == "" {
		return
	}
	go func() {
		cmd := exec.Command("sh", "-c", s.command)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			s.logger.Warn("tts command failed", zap.Error(err))
		}
	}()
}

// systemOpener opens URLs with the desktop's default handler.
type systemOpener struct{}

func (systemOpener) Open(url string) error {
	return exec.Command("xdg-open", url).Start()
}

// micCapture stands in for a speech capture device on terminals without one.
// It only tracks the active state; transcripts arrive through the /say
// control instead of a recognizer.
type micCapture struct {
	out io.Writer

	mu     sync.Mutex
	active bool
}

func (m *micCapture) Start() error {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	fmt.Fprintln(m.out, "listening... (/say <text> to talk, /done to submit)")
	return nil
}

func (m *micCapture) Stop() error {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.mu.Unlock()
	if wasActive {
		fmt.Fprintln(m.out, "stopped listening")
	}
	return nil
}
