package integration

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dentflow/dentflow/internal/domain/appointment"
	"github.com/dentflow/dentflow/internal/domain/patient"
)

// mongoDatabase connects to MONGO_URL and returns a fresh database that is
// dropped when the test ends.
func mongoDatabase(t *testing.T) (context.Context, *mongo.Database) {
	t.Helper()
	url := os.Getenv("MONGO_URL")
	if url == "" {
		t.Skip("MONGO_URL not set")
	}

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(url))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		t.Fatalf("ping mongo: %v", err)
	}

	name := "dentflow_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	db := client.Database(name)
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return ctx, db
}

func insertMongoPatient(t *testing.T, ctx context.Context, db *mongo.Database, fullname, phone string) *patient.Patient {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := patient.Document{ID: uuid.NewString(), Fullname: fullname, Phone: phone, CreatedAt: now, UpdatedAt: now}
	if _, err := db.Collection(patient.Collection).InsertOne(ctx, doc); err != nil {
		t.Fatalf("insert patient: %v", err)
	}
	p, err := doc.ToPatient()
	if err != nil {
		t.Fatalf("patient document: %v", err)
	}
	return p
}

func TestMongoPatientRepo_GetByID(t *testing.T) {
	ctx, db := mongoDatabase(t)
	p := insertMongoPatient(t, ctx, db, "Anna Petrova", "+79991234567")
	repo := patient.NewRepoMongo(db)

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != p.ID || got.Fullname != p.Fullname || got.Phone != p.Phone || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("unexpected patient: %+v", got)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMongoAppointmentRepo_CRUD(t *testing.T) {
	ctx, db := mongoDatabase(t)
	p := insertMongoPatient(t, ctx, db, "Anna Petrova", "+79991234567")
	repo := appointment.NewRepoMongo(db)

	a := newAppointment(p, "20.06.2024")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil || a.CreatedAt.IsZero() || !a.UpdatedAt.Equal(a.CreatedAt) {
		t.Fatalf("expected id and timestamps set, got %+v", a)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PatientID != p.ID || got.Price != "1500,50" || got.Date != "20.06.2024" || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("unexpected appointment: %+v", got)
	}
	if got.Patient != nil {
		t.Errorf("GetByID must not join the patient, got %+v", got.Patient)
	}

	diag := "Pulpitis"
	updated, err := repo.Update(ctx, a.ID, appointment.Fields{Diagnosis: &diag})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Diagnosis != diag || updated.DentNumber != a.DentNumber || updated.Time != a.Time {
		t.Errorf("expected only diagnosis changed, got %+v", updated)
	}
	if updated.UpdatedAt.Before(a.UpdatedAt) {
		t.Errorf("updatedAt went backwards: %s < %s", updated.UpdatedAt, a.UpdatedAt)
	}
	if _, err := repo.Update(ctx, uuid.New(), appointment.Fields{Diagnosis: &diag}); !errors.Is(err, appointment.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update of missing id, got %v", err)
	}

	deleted, err := repo.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != a.ID || deleted.Diagnosis != diag {
		t.Errorf("expected deleted record returned, got %+v", deleted)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, appointment.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := repo.Delete(ctx, a.ID); !errors.Is(err, appointment.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMongoAppointmentRepo_ListWithPatient(t *testing.T) {
	ctx, db := mongoDatabase(t)
	p := insertMongoPatient(t, ctx, db, "Anna Petrova", "+79991234567")
	repo := appointment.NewRepoMongo(db)

	items, err := repo.ListWithPatient(ctx)
	if err != nil {
		t.Fatalf("ListWithPatient on empty collection: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}

	var created []*appointment.Appointment
	for i := 0; i < 3; i++ {
		a := newAppointment(p, "10.01.2024")
		if i == 1 {
			a.PatientID = uuid.New()
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
		created = append(created, a)
	}

	items, err = repo.ListWithPatient(ctx)
	if err != nil {
		t.Fatalf("ListWithPatient: %v", err)
	}
	if len(items) != len(created) {
		t.Fatalf("expected %d items, got %d", len(created), len(items))
	}
	for i, a := range items {
		if a.ID != created[i].ID {
			t.Fatalf("item %d: expected %s, got %s", i, created[i].ID, a.ID)
		}
	}
	if items[0].Patient == nil || items[0].Patient.Phone != p.Phone || items[2].Patient == nil {
		t.Errorf("expected patient joined, got %+v / %+v", items[0].Patient, items[2].Patient)
	}
	if items[1].Patient != nil {
		t.Errorf("expected nil patient for orphan, got %+v", items[1].Patient)
	}
}
