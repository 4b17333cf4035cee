package submission

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("submission not found")
	ErrNotEnrolled  = errors.New("you must be enrolled to submit an assignment")
	ErrStudentsOnly = errors.New("only students can submit assignments")

	// surfaced on the upload form when the extension is not allowed
	ErrFileExtMsg = "only PDF/DOCX accepted"
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissionsByCourse returns the course's submissions in
		// insertion order; sorting is the service's concern.
		QuerySubmissionsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Submission, error)
		ExistsForStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (bool, error)
		SetGrade(ctx context.Context, id string, grade null.String, exec ...core.DBExecutor) (Submission, error)
	}

	Service interface {
		// Submit records actor's uploaded work (already validated and stored
		// under fileRef) against the course. The student must be enrolled in
		// the course's formation.
		Submit(ctx context.Context, actor user.User, courseID, fileRef, kind string) (Submission, error)
		// ListByCourse returns the unified, newest-first submission list for
		// a course; owner or admin only. Computed per request, not persisted.
		ListByCourse(ctx context.Context, actor user.User, courseID string) ([]Submission, error)
		// GetForViewer returns the submission when actor is the submitting
		// student, the owning teacher or an admin.
		GetForViewer(ctx context.Context, actor user.User, id string) (Submission, error)
		// SubmittedCourseIDs reports which of the formation's courses the
		// student has already submitted work for.
		SubmittedCourseIDs(ctx context.Context, studentID string, courses []catalog.Course) ([]string, error)
		// Grade sets the grade on a submission; owner or admin only.
		Grade(ctx context.Context, actor user.User, id, grade string) (Submission, error)
	}

	service struct {
		db         *sqlx.DB
		repo       Repository
		catalogSvc catalog.Service
		enrollSvc  enroll.Service
		usrSvc     user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	db *sqlx.DB,
	repo Repository,
	catalogSvc catalog.Service,
	enrollSvc enroll.Service,
	usrSvc user.Service,
) Service {
	return &service{
		db:         db,
		repo:       repo,
		catalogSvc: catalogSvc,
		enrollSvc:  enrollSvc,
		usrSvc:     usrSvc,
	}
}

func (svc *service) Submit(ctx context.Context, actor user.User, courseID, fileRef, kind string) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, ErrStudentsOnly
	}

	course, err := svc.catalogSvc.GetCourse(ctx, courseID)
	if err != nil {
		return Submission{}, err
	}
	enrolled, err := svc.enrollSvc.IsEnrolled(ctx, actor.ID, course.FormationID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Submission{}, ErrNotEnrolled
	}

	if kind == "" {
		kind = KindCourse
	}
	return svc.repo.CreateSubmission(ctx, Submission{
		CourseID:    courseID,
		StudentID:   actor.ID,
		File:        fileRef,
		Kind:        kind,
		SubmittedAt: time.Now().UTC(),
	})
}

func (svc *service) ListByCourse(ctx context.Context, actor user.User, courseID string) ([]Submission, error) {
	course, err := svc.catalogSvc.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	f, err := svc.catalogSvc.Get(ctx, course.FormationID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewSubmissions(actor, f.TeacherID) {
		return nil, access.ErrPermissionDenied
	}

	subs, err := svc.repo.QuerySubmissionsByCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course submissions")
	}

	// newest first; equal timestamps keep the legacy shape first, then
	// encounter order (the sort is stable).
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return kindRank(subs[i].Kind) < kindRank(subs[j].Kind)
		}
		return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
	})

	for i := range subs {
		if student, err := svc.usrSvc.GetByID(ctx, subs[i].StudentID); err == nil {
			subs[i].StudentName = student.DisplayName()
		} else {
			subs[i].StudentName = subs[i].StudentID
		}
	}
	return subs, nil
}

func (svc *service) GetForViewer(ctx context.Context, actor user.User, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.StudentID == actor.ID {
		return sub, nil
	}

	course, err := svc.catalogSvc.GetCourse(ctx, sub.CourseID)
	if err != nil {
		return Submission{}, err
	}
	f, err := svc.catalogSvc.Get(ctx, course.FormationID)
	if err != nil {
		return Submission{}, err
	}
	if !access.CanViewSubmissions(actor, f.TeacherID) {
		return Submission{}, access.ErrPermissionDenied
	}
	return sub, nil
}

func (svc *service) SubmittedCourseIDs(ctx context.Context, studentID string, courses []catalog.Course) ([]string, error) {
	var ids []string
	for _, c := range courses {
		submitted, err := svc.repo.ExistsForStudent(ctx, c.ID, studentID)
		if err != nil {
			return nil, errors.Wrap(err, "checking submission")
		}
		if submitted {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (svc *service) Grade(ctx context.Context, actor user.User, id, grade string) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	course, err := svc.catalogSvc.GetCourse(ctx, sub.CourseID)
	if err != nil {
		return Submission{}, err
	}
	f, err := svc.catalogSvc.Get(ctx, course.FormationID)
	if err != nil {
		return Submission{}, err
	}
	if !access.CanViewSubmissions(actor, f.TeacherID) {
		return Submission{}, access.ErrPermissionDenied
	}

	grade = core.CleanString(grade)
	if grade == "" {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}
	return svc.repo.SetGrade(ctx, id, null.StringFrom(grade))
}
