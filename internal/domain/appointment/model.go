package appointment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentflow/dentflow/internal/domain/patient"
)

// Appointment is a booked dental visit.
type Appointment struct {
	ID         uuid.UUID `db:"id"`
	PatientID  uuid.UUID `db:"patient_id"`
	DentNumber string    `db:"dent_number"`
	Diagnosis  string    `db:"diagnosis"`
	Price      string    `db:"price"`
	Date       string    `db:"date"`
	Time       string    `db:"time"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`

	// Patient is set only by ListWithPatient.
	Patient *patient.Patient `db:"-"`
}

// newID returns a time-ordered id, so appointments sharing a created_at
// timestamp still list in insertion order.
func newID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate appointment id: %w", err)
	}
	return id, nil
}

type appointmentJSON struct {
	ID         uuid.UUID   `json:"id"`
	Patient    interface{} `json:"patient"`
	DentNumber string      `json:"dentNumber"`
	Diagnosis  string      `json:"diagnosis"`
	Price      string      `json:"price"`
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// MarshalJSON renders "patient" as the resolved patient object when it was
// joined in and as the bare id otherwise.
func (a Appointment) MarshalJSON() ([]byte, error) {
	out := appointmentJSON{
		ID:         a.ID,
		Patient:    a.PatientID,
		DentNumber: a.DentNumber,
		Diagnosis:  a.Diagnosis,
		Price:      a.Price,
		Date:       a.Date,
		Time:       a.Time,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Patient != nil {
		out.Patient = a.Patient
	}
	return json.Marshal(out)
}

// Fields holds the mutable attributes of an appointment. Nil fields are
// left unchanged by an update.
type Fields struct {
	DentNumber *string
	Diagnosis  *string
	Price      *string
	Date       *string
	Time       *string
}

func (f Fields) Empty() bool {
	return f.DentNumber == nil && f.Diagnosis == nil && f.Price == nil && f.Date == nil && f.Time == nil
}

// Apply copies the set fields onto a.
func (f Fields) Apply(a *Appointment) {
	if f.DentNumber != nil {
		a.DentNumber = *f.DentNumber
	}
	if f.Diagnosis != nil {
		a.Diagnosis = *f.Diagnosis
	}
	if f.Price != nil {
		a.Price = *f.Price
	}
	if f.Date != nil {
		a.Date = *f.Date
	}
	if f.Time != nil {
		a.Time = *f.Time
	}
}

// Text is a string field that also accepts a bare JSON number, keeping the
// number exactly as written ("18", "1500.50").
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

func textPtr(t *Text) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// -- Requests --

type CreateRequest struct {
	Patient    string `json:"patient" validate:"required"`
	DentNumber Text   `json:"dentNumber" validate:"required,dentnum"`
	Diagnosis  string `json:"diagnosis" validate:"required,max=2000"`
	Price      Text   `json:"price" validate:"required,price"`
	Date       string `json:"date" validate:"required,ddmmyyyy"`
	Time       string `json:"time" validate:"required,hhmm"`
}

// UpdateRequest replaces all mutable fields (PUT).
type UpdateRequest struct {
	DentNumber Text   `json:"dentNumber" validate:"required,dentnum"`
	Diagnosis  string `json:"diagnosis" validate:"required,max=2000"`
	Price      Text   `json:"price" validate:"required,price"`
	Date       string `json:"date" validate:"required,ddmmyyyy"`
	Time       string `json:"time" validate:"required,hhmm"`
}

func (r UpdateRequest) Fields() Fields {
	dent, price := string(r.DentNumber), string(r.Price)
	diagnosis, date, tm := r.Diagnosis, r.Date, r.Time
	return Fields{DentNumber: &dent, Diagnosis: &diagnosis, Price: &price, Date: &date, Time: &tm}
}

// PatchRequest sets only the fields present in the body (PATCH).
type PatchRequest struct {
	DentNumber *Text   `json:"dentNumber" validate:"omitempty,dentnum"`
	Diagnosis  *string `json:"diagnosis" validate:"omitempty,min=1,max=2000"`
	Price      *Text   `json:"price" validate:"omitempty,price"`
	Date       *string `json:"date" validate:"omitempty,ddmmyyyy"`
	Time       *string `json:"time" validate:"omitempty,hhmm"`
}

func (r PatchRequest) Fields() Fields {
	return Fields{
		DentNumber: textPtr(r.DentNumber),
		Diagnosis:  r.Diagnosis,
		Price:      textPtr(r.Price),
		Date:       r.Date,
		Time:       r.Time,
	}
}
