// Package notification delivers SMS reminders: templates for the message
// text, senders for the carrier, and schedulers that hold a reminder until
// its delivery time.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/dentflow/dentflow/internal/platform/locale"
)

// Reminder is one SMS to deliver at a given instant.
type Reminder struct {
	Number string    `json:"number"`
	At     time.Time `json:"at"`
	Text   string    `json:"text"`
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Scheduler accepts a reminder for delivery at Reminder.At. Instants in the
// past are delivered as soon as possible.
type Scheduler interface {
	Schedule(ctx context.Context, r Reminder) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

const TemplateAppointmentReminder = "appointment-reminder"

// TemplateEngine renders {{key}} templates registered per language.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]string)}
	e.Register(TemplateAppointmentReminder, language.English,
		"Today at {{time}} you have an appointment at the dental clinic.")
	e.Register(TemplateAppointmentReminder, language.Russian,
		"Сегодня в {{time}} у Вас приём в стоматологии.")
	return e
}

func templateKey(id string, lang language.Tag) string {
	return id + "." + locale.Code(lang)
}

// Register adds or replaces the body of template id for lang.
func (e *TemplateEngine) Register(id string, lang language.Tag, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[templateKey(id, lang)] = body
}

// Render fills template id for lang, falling back to English. Placeholders
// without a value are left as-is.
func (e *TemplateEngine) Render(id string, lang language.Tag, data map[string]string) (string, error) {
	e.mu.RLock()
	body, ok := e.templates[templateKey(id, lang)]
	if !ok {
		body, ok = e.templates[templateKey(id, language.English)]
	}
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}

	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}

// ---------------------------------------------------------------------------
// Log sender
// ---------------------------------------------------------------------------

// LogSender writes messages to the log instead of a carrier. Used in
// development and when no SMS provider is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "sms").Logger()}
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", to).Str("body", body).Msg("sms sent")
	return nil
}

var ErrSchedulerStopped = errors.New("scheduler stopped")
