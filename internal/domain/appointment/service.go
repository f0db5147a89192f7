package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/dentflow/dentflow/internal/domain/patient"
	"github.com/dentflow/dentflow/internal/platform/httperr"
	"github.com/dentflow/dentflow/internal/platform/notification"
	"github.com/dentflow/dentflow/internal/platform/validation"
)

var ErrPatientNotFound = errors.New("patient not found")

// PatientLookup resolves the patient an appointment is booked for.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Options struct {
	// Locale selects the group titles and the reminder text language.
	Locale language.Tag
	// Location is the zone appointment date and time are written in.
	Location *time.Location
	// ReminderOffset is how long before the visit the SMS goes out.
	ReminderOffset time.Duration
	// DispatchTimeout bounds a single hand-off to the scheduler.
	DispatchTimeout time.Duration
}

type Service struct {
	repo      Repository
	patients  PatientLookup
	reminders notification.Scheduler
	templates *notification.TemplateEngine
	logger    zerolog.Logger
	opts      Options

	inflight sync.WaitGroup
}

func NewService(repo Repository, patients PatientLookup, reminders notification.Scheduler,
	templates *notification.TemplateEngine, logger zerolog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	return &Service{
		repo:      repo,
		patients:  patients,
		reminders: reminders,
		templates: templates,
		logger:    logger.With().Str("component", "appointments").Logger(),
		opts:      opts,
	}
}

// Create books an appointment for an existing patient and schedules its SMS
// reminder. The reminder is handed off in the background; a failure there
// is logged and does not affect the result.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	pid, err := uuid.Parse(req.Patient)
	if err != nil {
		return nil, ErrPatientNotFound
	}
	p, err := s.patients.GetByID(ctx, pid)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:  p.ID,
		DentNumber: string(req.DentNumber),
		Diagnosis:  req.Diagnosis,
		Price:      string(req.Price),
		Date:       req.Date,
		Time:       req.Time,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	r, err := s.Reminder(a, p.Phone)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("build reminder")
		return a, nil
	}
	s.dispatch(ctx, a.ID, r)
	return a, nil
}

// Reminder builds the SMS for a: due ReminderOffset before the visit, with
// the visit time in the text.
func (s *Service) Reminder(a *Appointment, phone string) (notification.Reminder, error) {
	at, err := time.ParseInLocation(validation.DateLayout+" "+validation.TimeLayout, a.Date+" "+a.Time, s.opts.Location)
	if err != nil {
		return notification.Reminder{}, fmt.Errorf("parse visit time: %w", err)
	}
	text, err := s.templates.Render(notification.TemplateAppointmentReminder, s.opts.Locale,
		map[string]string{"time": a.Time})
	if err != nil {
		return notification.Reminder{}, err
	}
	return notification.Reminder{Number: phone, At: at.Add(-s.opts.ReminderOffset), Text: text}, nil
}

func (s *Service) dispatch(ctx context.Context, id uuid.UUID, r notification.Reminder) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.DispatchTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.reminders.Schedule(ctx, r); err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", id.String()).
				Time("remind_at", r.At).
				Msg("schedule reminder failed")
		}
	}()
}

// Wait blocks until every background reminder hand-off has returned.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return uid, nil
}

// Update replaces all five mutable fields.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, uid, req.Fields())
}

// Patch sets only the fields present in req. At least one is required.
func (s *Service) Patch(ctx context.Context, id string, req PatchRequest) (*Appointment, error) {
	f := req.Fields()
	if f.Empty() {
		return nil, httperr.New(http.StatusUnprocessableEntity, []httperr.FieldError{
			{Field: "body", Error: "at least one field must be provided"},
		})
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, uid, f)
}

func (s *Service) Remove(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	_, err = s.repo.Delete(ctx, uid)
	return err
}

func (s *Service) Show(ctx context.Context, id string) (*Appointment, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, uid)
}

// List returns every appointment, patient resolved, grouped by date.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	items, err := s.repo.ListWithPatient(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByDate(items, s.opts.Locale), nil
}
