package catalog

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrFormationNotFound = errors.New("formation not found")
	ErrCourseNotFound    = errors.New("course not found")
	ErrNotATeacher       = errors.New("only teachers can publish formations")
)

type (
	Repository interface {
		CreateFormation(ctx context.Context, f Formation, exec ...core.DBExecutor) (Formation, error)
		GetFormationByID(ctx context.Context, id string, exec ...core.DBExecutor) (Formation, error)
		// QueryFormations applies AND on available QueryFilter fields,
		// newest first by default.
		QueryFormations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Formation, error)
		UpdateFormation(ctx context.Context, f Formation, isApproved *bool, exec ...core.DBExecutor) (Formation, error)
		// DeleteFormation cascades to the formation's courses.
		DeleteFormation(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCoursesByFormation(ctx context.Context, formationID string, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Publish(ctx context.Context, actor user.User, nf NewFormation) (Formation, error)
		// List returns the catalog visible to actor: everything for admins,
		// approved formations only for everyone else.
		List(ctx context.Context, actor user.User, filter *QueryFilter) ([]Formation, error)
		// ListMine returns the formations owned by actor.
		ListMine(ctx context.Context, actor user.User) ([]Formation, error)
		Get(ctx context.Context, id string) (Formation, error)
		GetWithCourses(ctx context.Context, id string) (Formation, error)
		Update(ctx context.Context, actor user.User, id string, uf UpdateFormation) (Formation, error)
		Delete(ctx context.Context, actor user.User, id string) error

		AddCourse(ctx context.Context, actor user.User, formationID string, nc NewCourse) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error)
		SetCourseDoc(ctx context.Context, actor user.User, id, kind, ref string) (Course, error)
		DeleteCourse(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		db   *sqlx.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db *sqlx.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (svc *service) Publish(ctx context.Context, actor user.User, nf NewFormation) (Formation, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Formation{}, ErrNotATeacher
	}

	now := time.Now().UTC()
	f := Formation{
		Title:       nf.Title,
		Description: nf.Description,
		Price:       nf.Price,
		TeacherID:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateFormation(ctx, f)
}

func (svc *service) List(ctx context.Context, actor user.User, filter *QueryFilter) ([]Formation, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.ApprovedOnly = !actor.IsAdmin()
	return svc.repo.QueryFormations(ctx, filter, nil)
}

func (svc *service) ListMine(ctx context.Context, actor user.User) ([]Formation, error) {
	return svc.repo.QueryFormations(ctx, &QueryFilter{TeacherID: actor.ID}, nil)
}

func (svc *service) Get(ctx context.Context, id string) (Formation, error) {
	return svc.repo.GetFormationByID(ctx, id)
}

func (svc *service) GetWithCourses(ctx context.Context, id string) (Formation, error) {
	f, err := svc.repo.GetFormationByID(ctx, id)
	if err != nil {
		return Formation{}, err
	}
	if f.Courses, err = svc.repo.QueryCoursesByFormation(ctx, id); err != nil {
		return Formation{}, errors.Wrap(err, "querying formation courses")
	}
	return f, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, uf UpdateFormation) (Formation, error) {
	orig, err := svc.repo.GetFormationByID(ctx, id)
	if err != nil {
		return Formation{}, err
	}
	if !access.CanManageFormation(actor, orig.TeacherID) {
		return Formation{}, access.ErrPermissionDenied
	}
	if err = uf.Validate(orig); err != nil {
		return Formation{}, err
	}

	f := Formation{
		ID:          id,
		Title:       uf.Title,
		Description: uf.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	if uf.Price != nil {
		f.Price = *uf.Price
	} else {
		f.Price = orig.Price
	}

	// only admins flip the approval flag
	isApproved := uf.IsApproved
	if !actor.IsAdmin() {
		isApproved = nil
	}
	return svc.repo.UpdateFormation(ctx, f, isApproved)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	orig, err := svc.repo.GetFormationByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanManageFormation(actor, orig.TeacherID) {
		return access.ErrPermissionDenied
	}
	return svc.repo.DeleteFormation(ctx, id)
}

func (svc *service) AddCourse(ctx context.Context, actor user.User, formationID string, nc NewCourse) (Course, error) {
	f, err := svc.repo.GetFormationByID(ctx, formationID)
	if err != nil {
		return Course{}, err
	}
	if !access.CanManageFormation(actor, f.TeacherID) {
		return Course{}, access.ErrPermissionDenied
	}

	now := time.Now().UTC()
	c := Course{
		FormationID: formationID,
		Title:       nc.Title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) courseForManage(ctx context.Context, actor user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	f, err := svc.repo.GetFormationByID(ctx, c.FormationID)
	if err != nil {
		return Course{}, err
	}
	if !access.CanManageFormation(actor, f.TeacherID) {
		return Course{}, access.ErrPermissionDenied
	}
	return c, nil
}

func (svc *service) UpdateCourse(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.courseForManage(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if err = uc.Validate(orig); err != nil {
		return Course{}, err
	}

	orig.Title = uc.Title
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, orig)
}

func (svc *service) SetCourseDoc(ctx context.Context, actor user.User, id, kind, ref string) (Course, error) {
	c, err := svc.courseForManage(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}

	switch kind {
	case DocReference:
		c.ReferenceDoc = null.StringFrom(ref)
	case DocPractice:
		c.PracticeDoc = null.StringFrom(ref)
	case DocCorrection:
		c.CorrectionDoc = null.StringFrom(ref)
	default:
		return Course{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown document kind"})
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) DeleteCourse(ctx context.Context, actor user.User, id string) error {
	c, err := svc.courseForManage(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, c.ID)
}
