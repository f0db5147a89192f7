package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the person an appointment is booked for. Records are managed
// elsewhere; this service only reads them.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Fullname  string    `db:"fullname" json:"fullname"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
