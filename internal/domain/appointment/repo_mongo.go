package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dentflow/dentflow/internal/domain/patient"
)

// Collection is the mongo collection holding appointment documents.
const Collection = "appointments"

type document struct {
	ID         string    `bson:"_id"`
	Patient    string    `bson:"patient"`
	DentNumber string    `bson:"dentNumber"`
	Diagnosis  string    `bson:"diagnosis"`
	Price      string    `bson:"price"`
	Date       string    `bson:"date"`
	Time       string    `bson:"time"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`

	// Filled by the $lookup stage of ListWithPatient.
	PatientDocs []patient.Document `bson:"patientDocs,omitempty"`
}

func toDocument(a *Appointment) document {
	return document{
		ID:         a.ID.String(),
		Patient:    a.PatientID.String(),
		DentNumber: a.DentNumber,
		Diagnosis:  a.Diagnosis,
		Price:      a.Price,
		Date:       a.Date,
		Time:       a.Time,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (d document) toAppointment() (*Appointment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("appointment document %q: %w", d.ID, err)
	}
	pid, err := uuid.Parse(d.Patient)
	if err != nil {
		return nil, fmt.Errorf("appointment %s patient %q: %w", d.ID, d.Patient, err)
	}
	a := &Appointment{
		ID:         id,
		PatientID:  pid,
		DentNumber: d.DentNumber,
		Diagnosis:  d.Diagnosis,
		Price:      d.Price,
		Date:       d.Date,
		Time:       d.Time,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if len(d.PatientDocs) > 0 {
		if a.Patient, err = d.PatientDocs[0].ToPatient(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// setFields builds the $set document for the non-nil fields.
func setFields(f Fields, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if f.DentNumber != nil {
		set["dentNumber"] = *f.DentNumber
	}
	if f.Diagnosis != nil {
		set["diagnosis"] = *f.Diagnosis
	}
	if f.Price != nil {
		set["price"] = *f.Price
	}
	if f.Date != nil {
		set["date"] = *f.Date
	}
	if f.Time != nil {
		set["time"] = *f.Time
	}
	return set
}

type repoMongo struct {
	coll     *mongo.Collection
	patients string
	now      func() time.Time
}

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{
		coll:     db.Collection(Collection),
		patients: patient.Collection,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (r *repoMongo) Create(ctx context.Context, a *Appointment) error {
	id, err := newID()
	if err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = r.now()
	a.UpdatedAt = a.CreatedAt
	if _, err := r.coll.InsertOne(ctx, toDocument(a)); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoMongo) decodeOne(res *mongo.SingleResult, op string, id uuid.UUID) (*Appointment, error) {
	var doc document
	err := res.Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s appointment %s: %w", op, id, err)
	}
	return doc.toAppointment()
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.decodeOne(r.coll.FindOne(ctx, bson.M{"_id": id.String()}), "get", id)
}

func (r *repoMongo) Update(ctx context.Context, id uuid.UUID, f Fields) (*Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": setFields(f, r.now())},
		opts)
	return r.decodeOne(res, "update", id)
}

func (r *repoMongo) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.decodeOne(r.coll.FindOneAndDelete(ctx, bson.M{"_id": id.String()}), "delete", id)
}

func (r *repoMongo) ListWithPatient(ctx context.Context) ([]*Appointment, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.patients},
			{Key: "localField", Value: "patient"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "patientDocs"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer cur.Close(ctx)

	var items []*Appointment
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode appointment: %w", err)
		}
		a, err := doc.toAppointment()
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return items, nil
}
