package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enroll"
)

type enrollRepository struct {
	exec core.DBExecutor
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(exec core.DBExecutor) *enrollRepository {
	return &enrollRepository{exec: exec}
}

type enrollmentRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	FormationID string    `db:"formation_id"`
	CreatedAt   time.Time `db:"created_at"`
}

type purchaseRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	FormationID string    `db:"formation_id"`
	IsPaid      bool      `db:"is_paid"`
	PurchasedAt time.Time `db:"purchased_at"`
}

const (
	enrollmentCols = `id, student_id, formation_id, created_at`
	purchaseCols   = `id, student_id, formation_id, is_paid, purchased_at`
)

// CreateEnrollment is get-or-create on the unique (student_id, formation_id)
// pair. The DO UPDATE no-op lets RETURNING hand back the surviving row
// whether it is new or pre-existing.
func (repo enrollRepository) CreateEnrollment(ctx context.Context, e enroll.Enrollment, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	q := fmt.Sprintf(`
		INSERT INTO enrollment (id, student_id, formation_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, formation_id) DO UPDATE SET student_id = enrollment.student_id
		RETURNING %s`, enrollmentCols)

	var r enrollmentRow
	row := getExec(repo.exec, exec).QueryRowContext(ctx, q, e.ID, e.StudentID, e.FormationID, e.CreatedAt.UTC())
	if err := row.Scan(&r.ID, &r.StudentID, &r.FormationID, &r.CreatedAt); err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "upserting enrollment")
	}
	return enroll.Enrollment(r), nil
}

func (repo enrollRepository) GetEnrollment(ctx context.Context, studentID, formationID string, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	var r enrollmentRow
	q := fmt.Sprintf(`SELECT %s FROM enrollment WHERE student_id = $1 AND formation_id = $2`, enrollmentCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, studentID, formationID); err != nil {
		return enroll.Enrollment{}, trapNoRowsErr(err, enroll.ErrNotFound, "getting enrollment")
	}
	return enroll.Enrollment(r), nil
}

// CreatePurchase is get-or-create; a pre-existing row keeps its paid flag
// so a replayed callback cannot downgrade a settled purchase.
func (repo enrollRepository) CreatePurchase(ctx context.Context, p enroll.Purchase, exec ...core.DBExecutor) (enroll.Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	q := fmt.Sprintf(`
		INSERT INTO purchase (id, student_id, formation_id, is_paid, purchased_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, formation_id) DO UPDATE SET student_id = purchase.student_id
		RETURNING %s`, purchaseCols)

	var r purchaseRow
	row := getExec(repo.exec, exec).QueryRowContext(ctx, q, p.ID, p.StudentID, p.FormationID, p.IsPaid, p.PurchasedAt.UTC())
	if err := row.Scan(&r.ID, &r.StudentID, &r.FormationID, &r.IsPaid, &r.PurchasedAt); err != nil {
		return enroll.Purchase{}, errors.Wrap(err, "upserting purchase")
	}
	return enroll.Purchase(r), nil
}

func (repo enrollRepository) GetPurchase(ctx context.Context, studentID, formationID string, exec ...core.DBExecutor) (enroll.Purchase, error) {
	var r purchaseRow
	q := fmt.Sprintf(`SELECT %s FROM purchase WHERE student_id = $1 AND formation_id = $2`, purchaseCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, studentID, formationID); err != nil {
		return enroll.Purchase{}, trapNoRowsErr(err, enroll.ErrNotFound, "getting purchase")
	}
	return enroll.Purchase(r), nil
}

func (repo enrollRepository) MarkPurchasePaid(ctx context.Context, id string, exec ...core.DBExecutor) (enroll.Purchase, error) {
	q := fmt.Sprintf(`UPDATE purchase SET is_paid = TRUE WHERE id = $1 RETURNING %s`, purchaseCols)

	var r purchaseRow
	row := getExec(repo.exec, exec).QueryRowContext(ctx, q, id)
	if err := row.Scan(&r.ID, &r.StudentID, &r.FormationID, &r.IsPaid, &r.PurchasedAt); err != nil {
		return enroll.Purchase{}, trapNoRowsErr(err, enroll.ErrNotFound, "marking purchase paid")
	}
	return enroll.Purchase(r), nil
}

func (repo enrollRepository) QueryPurchasesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]enroll.Purchase, error) {
	var rows []purchaseRow
	q := fmt.Sprintf(`SELECT %s FROM purchase WHERE student_id = $1 ORDER BY purchased_at DESC`, purchaseCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying purchases by student")
	}
	return domainPurchases(rows), nil
}

func (repo enrollRepository) QueryPurchasesByFormation(ctx context.Context, formationID string, exec ...core.DBExecutor) ([]enroll.Purchase, error) {
	var rows []purchaseRow
	q := fmt.Sprintf(`SELECT %s FROM purchase WHERE formation_id = $1 ORDER BY purchased_at DESC`, purchaseCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, formationID); err != nil {
		return nil, errors.Wrap(err, "querying purchases by formation")
	}
	return domainPurchases(rows), nil
}

func domainPurchases(rows []purchaseRow) []enroll.Purchase {
	purchases := make([]enroll.Purchase, 0, len(rows))
	for _, r := range rows {
		purchases = append(purchases, enroll.Purchase(r))
	}
	return purchases
}
