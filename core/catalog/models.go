package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Formation is a priced course bundle owned by one teacher.
type Formation struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TeacherID   string          `json:"teacher_id"`
	IsApproved  bool            `json:"is_approved"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC

	// attached at read time for list/detail views; never persisted
	Courses   []Course `json:"courses,omitempty"`
	Purchased bool     `json:"purchased"`
	Paid      bool     `json:"paid"`
}

func (f *Formation) IsFree() bool {
	return f.Price.IsZero()
}

// Course is a unit of material within a Formation. The three optional
// documents are opaque file-storage references.
type Course struct {
	ID            string      `json:"id"`
	FormationID   string      `json:"formation_id"`
	Title         string      `json:"title"`
	ReferenceDoc  null.String `json:"reference_doc"`
	PracticeDoc   null.String `json:"practice_doc"`
	CorrectionDoc null.String `json:"correction_doc"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// Document kinds servable per course.
const (
	DocReference  = "reference"
	DocPractice   = "practice"
	DocCorrection = "correction"
)

// DocRef resolves a document kind to its stored reference.
func (c *Course) DocRef(kind string) (null.String, bool) {
	switch kind {
	case DocReference:
		return c.ReferenceDoc, true
	case DocPractice:
		return c.PracticeDoc, true
	case DocCorrection:
		return c.CorrectionDoc, true
	}
	return null.String{}, false
}

// NewFormation contains information needed to publish a new Formation.
type NewFormation struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"`
}

func (nf *NewFormation) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	if nf.Price.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "price must not be negative"})
	}
	return nil
}

// UpdateFormation defines what may be modified on an existing Formation.
// Zero values leave the original untouched.
type UpdateFormation struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	IsApproved  *bool            `json:"is_approved"` // admin only
}

func (uf *UpdateFormation) Validate(orig Formation) error {
	title := core.CleanString(uf.Title)
	if title != "" {
		uf.Title = title
	} else {
		uf.Title = orig.Title
	}

	desc := core.CleanString(uf.Description)
	if desc != "" {
		uf.Description = desc
	} else {
		uf.Description = orig.Description
	}

	if uf.Price != nil && uf.Price.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "price must not be negative"})
	}
	return nil
}

// NewCourse contains information needed to add a Course to a Formation.
type NewCourse struct {
	Title string `json:"title" validate:"required"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

// UpdateCourse defines what may be modified on an existing Course.
type UpdateCourse struct {
	Title string `json:"title"`
}

func (uc *UpdateCourse) Validate(orig Course) error {
	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	return nil
}

type QueryFilter struct {
	Search       string `query:"search"`
	TeacherID    string `query:"-"`
	ApprovedOnly bool   `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TeacherID == "" && !qf.ApprovedOnly
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
