package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is the mongo collection holding patient documents.
const Collection = "patients"

// Document is the stored shape of a patient. Ids are kept as their string
// form so they read the same from both stores.
type Document struct {
	ID        string    `bson:"_id"`
	Fullname  string    `bson:"fullname"`
	Phone     string    `bson:"phone"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// ToPatient converts d, failing when the stored id is not a UUID.
func (d Document) ToPatient() (*Patient, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("patient document %q: %w", d.ID, err)
	}
	return &Patient{
		ID:        id,
		Fullname:  d.Fullname,
		Phone:     d.Phone,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type repoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{coll: db.Collection(Collection)}
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var doc Document
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return doc.ToPatient()
}
