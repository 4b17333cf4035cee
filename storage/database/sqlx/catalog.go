package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/catalog"
)

type catalogRepository struct {
	exec core.DBExecutor
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) *catalogRepository {
	return &catalogRepository{exec: exec}
}

type formationRow struct {
	ID          string          `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	TeacherID   string          `db:"teacher_id"`
	IsApproved  bool            `db:"is_approved"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r formationRow) domain() catalog.Formation {
	return catalog.Formation{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		TeacherID:   r.TeacherID,
		IsApproved:  r.IsApproved,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type courseRow struct {
	ID            string      `db:"id"`
	FormationID   string      `db:"formation_id"`
	Title         string      `db:"title"`
	ReferenceDoc  null.String `db:"reference_doc"`
	PracticeDoc   null.String `db:"practice_doc"`
	CorrectionDoc null.String `db:"correction_doc"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r courseRow) domain() catalog.Course {
	return catalog.Course(r)
}

const (
	formationCols = `id, title, description, price, teacher_id, is_approved, created_at, updated_at`
	courseCols    = `id, formation_id, title, reference_doc, practice_doc, correction_doc, created_at, updated_at`
)

func (repo catalogRepository) CreateFormation(ctx context.Context, f catalog.Formation, exec ...core.DBExecutor) (catalog.Formation, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	q := `
		INSERT INTO formation (id, title, description, price, teacher_id, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := getExec(repo.exec, exec).ExecContext(
		ctx, q,
		f.ID, f.Title, f.Description, f.Price, f.TeacherID, f.IsApproved, f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
	)
	if err != nil {
		return catalog.Formation{}, errors.Wrap(err, "inserting formation")
	}
	return f, nil
}

func (repo catalogRepository) GetFormationByID(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Formation, error) {
	var r formationRow
	q := fmt.Sprintf(`SELECT %s FROM formation WHERE id = $1`, formationCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, id); err != nil {
		return catalog.Formation{}, trapNoRowsErr(err, catalog.ErrFormationNotFound, "getting formation by id")
	}
	return r.domain(), nil
}

func (repo catalogRepository) QueryFormations(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]catalog.Formation, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s)", p))
		}
		if filter.TeacherID != "" {
			where = append(where, "teacher_id = "+arg(filter.TeacherID))
		}
		if filter.ApprovedOnly {
			where = append(where, "is_approved")
		}
	}

	q := fmt.Sprintf(`SELECT %s FROM formation`, formationCols)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderingSQL(ordering, "created_at DESC")

	var rows []formationRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying formations")
	}
	formations := make([]catalog.Formation, 0, len(rows))
	for _, r := range rows {
		formations = append(formations, r.domain())
	}
	return formations, nil
}

func (repo catalogRepository) UpdateFormation(ctx context.Context, f catalog.Formation, isApproved *bool, exec ...core.DBExecutor) (catalog.Formation, error) {
	sets := []string{"title = $1", "description = $2", "price = $3", "updated_at = $4"}
	args := []interface{}{f.Title, f.Description, f.Price, f.UpdatedAt.UTC()}
	if isApproved != nil {
		args = append(args, *isApproved)
		sets = append(sets, fmt.Sprintf("is_approved = $%d", len(args)))
	}

	args = append(args, f.ID)
	q := fmt.Sprintf(`UPDATE formation SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := getExec(repo.exec, exec).ExecContext(ctx, q, args...)
	if err != nil {
		return catalog.Formation{}, errors.Wrap(err, "updating formation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Formation{}, catalog.ErrFormationNotFound
	}
	return repo.GetFormationByID(ctx, f.ID, exec...)
}

func (repo catalogRepository) DeleteFormation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	// courses, enrollments, purchases go with it (ON DELETE CASCADE)
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM formation WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting formation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrFormationNotFound
	}
	return nil
}

func (repo catalogRepository) CreateCourse(ctx context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	q := `
		INSERT INTO course (id, formation_id, title, reference_doc, practice_doc, correction_doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := getExec(repo.exec, exec).ExecContext(
		ctx, q,
		c.ID, c.FormationID, c.Title, c.ReferenceDoc, c.PracticeDoc, c.CorrectionDoc, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo catalogRepository) GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Course, error) {
	var r courseRow
	q := fmt.Sprintf(`SELECT %s FROM course WHERE id = $1`, courseCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, id); err != nil {
		return catalog.Course{}, trapNoRowsErr(err, catalog.ErrCourseNotFound, "getting course by id")
	}
	return r.domain(), nil
}

func (repo catalogRepository) QueryCoursesByFormation(ctx context.Context, formationID string, exec ...core.DBExecutor) ([]catalog.Course, error) {
	var rows []courseRow
	q := fmt.Sprintf(`SELECT %s FROM course WHERE formation_id = $1 ORDER BY created_at`, courseCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, formationID); err != nil {
		return nil, errors.Wrap(err, "querying courses by formation")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.domain())
	}
	return courses, nil
}

func (repo catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	// the service always passes a fully merged course
	q := `
		UPDATE course
		SET title = $1, reference_doc = $2, practice_doc = $3, correction_doc = $4, updated_at = $5
		WHERE id = $6`
	res, err := getExec(repo.exec, exec).ExecContext(
		ctx, q,
		c.Title, c.ReferenceDoc, c.PracticeDoc, c.CorrectionDoc, c.UpdatedAt.UTC(), c.ID,
	)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return c, nil
}

func (repo catalogRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrCourseNotFound
	}
	return nil
}
