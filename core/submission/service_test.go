package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/payment"
	"github.com/trezcool/academia/storage/database/dummy"
	"github.com/trezcool/academia/tests"
)

var (
	admin   = user.User{ID: "adm", Roles: []string{user.RoleAdmin}}
	teacher = user.User{ID: "tea", Roles: []string{user.RoleTeacher}}
	rival   = user.User{ID: "riv", Roles: []string{user.RoleTeacher}}
)

type fixture struct {
	svc      submission.Service
	repo     submission.Repository
	catRepo  catalog.Repository
	enrlRepo enroll.Repository
	usrRepo  user.Repository
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig(t)
	usrRepo := dummydb.NewUserRepository(db)
	catRepo := dummydb.NewCatalogRepository(db)
	enrlRepo := dummydb.NewEnrollRepository(db)
	repo := dummydb.NewSubmissionRepository(db)

	usrSvc := user.NewService(nil, usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	catSvc := catalog.NewService(nil, catRepo)
	enrlSvc := enroll.NewService(nil, enrlRepo, catSvc, usrSvc, paymentsvc.NewDummyService(), conf)

	return &fixture{
		svc:      submission.NewService(nil, repo, catSvc, enrlSvc, usrSvc),
		repo:     repo,
		catRepo:  catRepo,
		enrlRepo: enrlRepo,
		usrRepo:  usrRepo,
	}
}

// course returns a ready course with the given student enrolled in its formation.
func (fix *fixture) course(t *testing.T, studentID string) catalog.Course {
	f := testutil.CreateFormation(t, fix.catRepo, "Go 101", decimal.Zero, teacher.ID, true)
	c := testutil.CreateCourse(t, fix.catRepo, f.ID, "Interfaces")
	if studentID != "" {
		testutil.CreateEnrollment(t, fix.enrlRepo, studentID, f.ID)
	}
	return c
}

func TestService_Submit(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	c := fix.course(t, student.ID)

	if _, err := fix.svc.Submit(ctx, teacher, c.ID, "submissions/x.pdf", ""); err != submission.ErrStudentsOnly {
		t.Errorf("Submit() error = %v, wantErr %v", err, submission.ErrStudentsOnly)
	}

	sub, err := fix.svc.Submit(ctx, student, c.ID, "submissions/work.pdf", submission.KindAssignment)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.Kind != submission.KindAssignment {
		t.Errorf("Submit() Kind = %v, want %v", sub.Kind, submission.KindAssignment)
	}
	if sub.StudentID != student.ID || sub.CourseID != c.ID {
		t.Errorf("Submit() = %+v, want the student's row on the course", sub)
	}

	// an omitted kind keeps the legacy shape
	sub, err = fix.svc.Submit(ctx, student, c.ID, "submissions/work2.pdf", "")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.Kind != submission.KindCourse {
		t.Errorf("Submit() Kind = %v, want %v", sub.Kind, submission.KindCourse)
	}
}

func TestService_Submit_notEnrolled(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	c := fix.course(t, "" /* nobody enrolled */)

	if _, err := fix.svc.Submit(ctx, student, c.ID, "submissions/x.pdf", ""); err != submission.ErrNotEnrolled {
		t.Errorf("Submit() error = %v, wantErr %v", err, submission.ErrNotEnrolled)
	}
	subs, err := fix.repo.QuerySubmissionsByCourse(ctx, c.ID)
	if err != nil {
		t.Fatalf("QuerySubmissionsByCourse() failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("Submit() refused but left %v rows behind", len(subs))
	}
}

func TestService_ListByCourse(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	c := fix.course(t, student.ID)

	now := time.Now().UTC().Truncate(time.Second)
	older := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/a.pdf", submission.KindAssignment, now.Add(-time.Hour))
	// two shapes sharing a timestamp: the legacy course shape lists first
	tiedAssignment := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/b.pdf", submission.KindAssignment, now)
	tiedCourse := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/c.pdf", submission.KindCourse, now)
	newest := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/d.pdf", submission.KindCourse, now.Add(time.Hour))

	if _, err := fix.svc.ListByCourse(ctx, rival, c.ID); err != access.ErrPermissionDenied {
		t.Errorf("ListByCourse() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}
	if _, err := fix.svc.ListByCourse(ctx, student, c.ID); err != access.ErrPermissionDenied {
		t.Errorf("ListByCourse() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}

	subs, err := fix.svc.ListByCourse(ctx, teacher, c.ID)
	if err != nil {
		t.Fatalf("ListByCourse() failed: %v", err)
	}
	wantOrder := []string{newest.ID, tiedCourse.ID, tiedAssignment.ID, older.ID}
	if len(subs) != len(wantOrder) {
		t.Fatalf("ListByCourse() = %v rows, want %v", len(subs), len(wantOrder))
	}
	for i, want := range wantOrder {
		if subs[i].ID != want {
			t.Errorf("ListByCourse()[%d] = %v (%v %v), want %v",
				i, subs[i].ID, subs[i].Kind, subs[i].SubmittedAt, want)
		}
	}
	// student names are resolved for the teacher's view
	if subs[0].StudentName != student.Name {
		t.Errorf("ListByCourse() StudentName = %v, want %v", subs[0].StudentName, student.Name)
	}
}

func TestService_Grade(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	c := fix.course(t, student.ID)
	sub := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/a.pdf", submission.KindCourse)

	for _, usr := range []user.User{rival, student} {
		if _, err := fix.svc.Grade(ctx, usr, sub.ID, "A"); err != access.ErrPermissionDenied {
			t.Errorf("Grade(%v) error = %v, wantErr %v", usr.Roles, err, access.ErrPermissionDenied)
		}
	}
	if got, _ := fix.repo.GetSubmissionByID(ctx, sub.ID); got.Grade.Valid {
		t.Errorf("Grade() refused but the grade was set to %v", got.Grade)
	}

	graded, err := fix.svc.Grade(ctx, teacher, sub.ID, " A+ ")
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if graded.Grade.String != "A+" {
		t.Errorf("Grade() = %v, want A+", graded.Grade)
	}
}

func TestService_GetForViewer(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, fix.usrRepo, "Other", "other1", "other@test.cd", "", []string{user.RoleStudent}, true)
	c := fix.course(t, student.ID)
	sub := testutil.CreateSubmission(t, fix.repo, c.ID, student.ID, "s/a.pdf", submission.KindCourse)

	for _, usr := range []user.User{student, teacher, admin} {
		if _, err := fix.svc.GetForViewer(ctx, usr, sub.ID); err != nil {
			t.Errorf("GetForViewer(%v) failed: %v", usr.Roles, err)
		}
	}
	for _, usr := range []user.User{other, rival} {
		if _, err := fix.svc.GetForViewer(ctx, usr, sub.ID); err != access.ErrPermissionDenied {
			t.Errorf("GetForViewer(%v) error = %v, wantErr %v", usr.Roles, err, access.ErrPermissionDenied)
		}
	}
}

func TestService_SubmittedCourseIDs(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	f := testutil.CreateFormation(t, fix.catRepo, "Go 101", decimal.Zero, teacher.ID, true)
	done := testutil.CreateCourse(t, fix.catRepo, f.ID, "Interfaces")
	pending := testutil.CreateCourse(t, fix.catRepo, f.ID, "Channels")
	testutil.CreateEnrollment(t, fix.enrlRepo, student.ID, f.ID)
	testutil.CreateSubmission(t, fix.repo, done.ID, student.ID, "s/a.pdf", submission.KindCourse)

	ids, err := fix.svc.SubmittedCourseIDs(ctx, student.ID, []catalog.Course{done, pending})
	if err != nil {
		t.Fatalf("SubmittedCourseIDs() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != done.ID {
		t.Errorf("SubmittedCourseIDs() = %v, want [%v]", ids, done.ID)
	}
}
