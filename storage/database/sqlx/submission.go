package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/submission"
)

type submissionRepository struct {
	exec core.DBExecutor
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{exec: exec}
}

type submissionRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	StudentID   string      `db:"student_id"`
	File        string      `db:"file"`
	Kind        string      `db:"kind"`
	Grade       null.String `db:"grade"`
	SubmittedAt time.Time   `db:"submitted_at"`
}

func (r submissionRow) domain() submission.Submission {
	return submission.Submission{
		ID:          r.ID,
		CourseID:    r.CourseID,
		StudentID:   r.StudentID,
		File:        r.File,
		Kind:        r.Kind,
		Grade:       r.Grade,
		SubmittedAt: r.SubmittedAt,
	}
}

const submissionCols = `id, course_id, student_id, file, kind, grade, submitted_at`

func (repo submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	q := `
		INSERT INTO submission (id, course_id, student_id, file, kind, grade, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := getExec(repo.exec, exec).ExecContext(
		ctx, q,
		s.ID, s.CourseID, s.StudentID, s.File, s.Kind, s.Grade, s.SubmittedAt.UTC(),
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo submissionRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	var r submissionRow
	q := fmt.Sprintf(`SELECT %s FROM submission WHERE id = $1`, submissionCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, id); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "getting submission by id")
	}
	return r.domain(), nil
}

func (repo submissionRepository) QuerySubmissionsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	var rows []submissionRow
	q := fmt.Sprintf(`SELECT %s FROM submission WHERE course_id = $1 ORDER BY submitted_at`, submissionCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying submissions by course")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.domain())
	}
	return subs, nil
}

func (repo submissionRepository) ExistsForStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM submission WHERE course_id = $1 AND student_id = $2)`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, courseID, studentID); err != nil {
		return false, errors.Wrap(err, "checking submission existence")
	}
	return exists, nil
}

func (repo submissionRepository) SetGrade(ctx context.Context, id string, grade null.String, exec ...core.DBExecutor) (submission.Submission, error) {
	q := fmt.Sprintf(`UPDATE submission SET grade = $1 WHERE id = $2 RETURNING %s`, submissionCols)

	var r submissionRow
	row := getExec(repo.exec, exec).QueryRowContext(ctx, q, grade, id)
	if err := row.Scan(&r.ID, &r.CourseID, &r.StudentID, &r.File, &r.Kind, &r.Grade, &r.SubmittedAt); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "setting submission grade")
	}
	return r.domain(), nil
}
