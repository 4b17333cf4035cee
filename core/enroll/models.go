package enroll

import "time"

// Enrollment grants a student access to a formation's content.
// One row per (student, formation) pair.
type Enrollment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	FormationID string    `json:"formation_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Purchase is the payment-ledger record for a (student, formation) pair.
// Free enrollments are recorded as paid.
type Purchase struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	FormationID string    `json:"formation_id"`
	IsPaid      bool      `json:"is_paid"`
	PurchasedAt time.Time `json:"purchased_at"` // UTC
}

// Outcome of an Enroll call.
type Outcome int

const (
	// OutcomeEnrolled: access granted immediately (free formation).
	OutcomeEnrolled Outcome = iota
	// OutcomeAlreadyEnrolled: the student already had access; nothing changed.
	OutcomeAlreadyEnrolled
	// OutcomeCheckout: a checkout session was created; redirect the student.
	OutcomeCheckout
	// OutcomeCancelled: the student backed out of checkout; no access granted.
	OutcomeCancelled
)

// EnrollResult is what an Enroll call hands back to the HTTP layer.
type EnrollResult struct {
	Outcome     Outcome `json:"-"`
	Message     string  `json:"message"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

// StudentRoster is one line of a formation's enrolled-students view:
// unique students with their ledger state.
type StudentRoster struct {
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IsPaid      bool      `json:"is_paid"`
	PurchasedAt time.Time `json:"purchased_at"`
}
