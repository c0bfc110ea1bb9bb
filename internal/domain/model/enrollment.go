package model

import (
	"time"

	"github.com/google/uuid"
)

// enrollmentNamespace seeds deterministic enrollment ids so that the same
// (user, product) pair always maps to the same record.
var enrollmentNamespace = uuid.MustParse("6f1c1f7e-4b7a-4f43-9d0e-2a5c0f1e9b21")

// EnrollmentProgress is owned by the learning side; reconciliation never writes it after creation.
type EnrollmentProgress struct {
	CompletedLessons []string   `json:"completed_lessons"`
	Completed        bool       `json:"completed"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// EnrollmentRecord grants a user access to a product. At most one per (user, product).
type EnrollmentRecord struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	ProductID  string             `json:"product_id"`
	PaymentID  string             `json:"payment_id"`
	EnrolledAt time.Time          `json:"enrolled_at"`
	Progress   EnrollmentProgress `json:"progress"`
}

// EnrollmentID derives the stable id for a (user, product) pair.
func EnrollmentID(userID, productID string) string {
	return uuid.NewSHA1(enrollmentNamespace, []byte(userID+"/"+productID)).String()
}

// NewEnrollment builds the enrollment granted by a paid record.
func NewEnrollment(p *PaymentRecord, at time.Time) *EnrollmentRecord {
	return &EnrollmentRecord{
		ID:         EnrollmentID(p.UserID, p.ProductID),
		UserID:     p.UserID,
		ProductID:  p.ProductID,
		PaymentID:  p.ID,
		EnrolledAt: at,
		Progress:   EnrollmentProgress{CompletedLessons: []string{}},
	}
}
