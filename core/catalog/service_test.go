package catalog_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database/dummy"
	"github.com/trezcool/academia/tests"
)

var (
	admin   = user.User{ID: "adm", Roles: []string{user.RoleAdmin}}
	teacher = user.User{ID: "tea", Roles: []string{user.RoleTeacher}}
	rival   = user.User{ID: "riv", Roles: []string{user.RoleTeacher}}
	student = user.User{ID: "stu", Roles: []string{user.RoleStudent}}
)

func setup(t *testing.T) (catalog.Service, catalog.Repository) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewCatalogRepository(db)
	return catalog.NewService(nil, repo), repo
}

func TestService_Publish(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	nf := catalog.NewFormation{Title: "Go 101", Description: "Intro", Price: decimal.NewFromInt(50)}

	if _, err := svc.Publish(ctx, student, nf); err != catalog.ErrNotATeacher {
		t.Errorf("Publish() error = %v, wantErr %v", err, catalog.ErrNotATeacher)
	}

	f, err := svc.Publish(ctx, teacher, nf)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if f.TeacherID != teacher.ID {
		t.Errorf("Publish() TeacherID = %v, want %v", f.TeacherID, teacher.ID)
	}
	if f.IsApproved {
		t.Error("Publish() new formation must not be pre-approved")
	}
}

func TestService_List_approvalVisibility(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	approved := testutil.CreateFormation(t, repo, "Approved", decimal.NewFromInt(10), teacher.ID, true)
	testutil.CreateFormation(t, repo, "Pending", decimal.NewFromInt(10), teacher.ID, false)

	for _, usr := range []user.User{student, teacher, rival} {
		got, err := svc.List(ctx, usr, nil)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != approved.ID {
			t.Errorf("List(%v) = %v formations, want only the approved one", usr.Roles, len(got))
		}
	}

	got, err := svc.List(ctx, admin, nil)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(admin) = %v formations, want 2", len(got))
	}

	mine, err := svc.ListMine(ctx, teacher)
	if err != nil {
		t.Fatalf("ListMine() failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("ListMine() = %v formations, want 2 (approval does not hide own work)", len(mine))
	}
}

// Approval gates discovery only; a direct read by id still serves a pending
// formation.
func TestService_Get_pendingApproval(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	pending := testutil.CreateFormation(t, repo, "Pending", decimal.NewFromInt(10), teacher.ID, false)

	got, err := svc.Get(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ID != pending.ID || got.IsApproved {
		t.Errorf("Get() = %+v, want the pending formation", got)
	}

	if _, err = svc.GetWithCourses(ctx, pending.ID); err != nil {
		t.Errorf("GetWithCourses() failed: %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	f := testutil.CreateFormation(t, repo, "Go 101", decimal.NewFromInt(50), teacher.ID, false)

	// non-owner teachers are refused and nothing changes
	_, err := svc.Update(ctx, rival, f.ID, catalog.UpdateFormation{Title: "Stolen"})
	if err != access.ErrPermissionDenied {
		t.Errorf("Update() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}
	unchanged, err := svc.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if unchanged.Title != f.Title {
		t.Errorf("Update() refused but Title changed to %v", unchanged.Title)
	}

	// a zero price is distinct from an absent one
	free := decimal.Zero
	updated, err := svc.Update(ctx, teacher, f.ID, catalog.UpdateFormation{Price: &free})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if !updated.Price.IsZero() {
		t.Errorf("Update() Price = %v, want 0", updated.Price)
	}
	if updated.Title != f.Title {
		t.Errorf("Update() Title = %v, want untouched %v", updated.Title, f.Title)
	}

	// only admins flip the approval flag
	yes := true
	updated, err = svc.Update(ctx, teacher, f.ID, catalog.UpdateFormation{IsApproved: &yes})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.IsApproved {
		t.Error("Update() teacher must not be able to approve their own formation")
	}
	updated, err = svc.Update(ctx, admin, f.ID, catalog.UpdateFormation{IsApproved: &yes})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if !updated.IsApproved {
		t.Error("Update() admin approval was not applied")
	}

	// negative prices never go through
	negative := decimal.NewFromInt(-1)
	_, err = svc.Update(ctx, teacher, f.ID, catalog.UpdateFormation{Price: &negative})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Update() error = %v, want a validation error", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	f := testutil.CreateFormation(t, repo, "Go 101", decimal.Zero, teacher.ID, true)
	c := testutil.CreateCourse(t, repo, f.ID, "Interfaces")

	if err := svc.Delete(ctx, rival, f.ID); err != access.ErrPermissionDenied {
		t.Errorf("Delete() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}

	if err := svc.Delete(ctx, teacher, f.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.Get(ctx, f.ID); err != catalog.ErrFormationNotFound {
		t.Errorf("Get() error = %v, wantErr %v", err, catalog.ErrFormationNotFound)
	}
	// deleting a formation takes its courses with it
	if _, err := svc.GetCourse(ctx, c.ID); err != catalog.ErrCourseNotFound {
		t.Errorf("GetCourse() error = %v, wantErr %v", err, catalog.ErrCourseNotFound)
	}
}

func TestService_courses(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	f := testutil.CreateFormation(t, repo, "Go 101", decimal.Zero, teacher.ID, true)

	if _, err := svc.AddCourse(ctx, rival, f.ID, catalog.NewCourse{Title: "Interfaces"}); err != access.ErrPermissionDenied {
		t.Errorf("AddCourse() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}

	c, err := svc.AddCourse(ctx, teacher, f.ID, catalog.NewCourse{Title: "Interfaces"})
	if err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}

	c, err = svc.SetCourseDoc(ctx, teacher, c.ID, catalog.DocReference, "courses/ref.pdf")
	if err != nil {
		t.Fatalf("SetCourseDoc() failed: %v", err)
	}
	if c.ReferenceDoc.String != "courses/ref.pdf" {
		t.Errorf("SetCourseDoc() ReferenceDoc = %v, want courses/ref.pdf", c.ReferenceDoc)
	}

	_, err = svc.SetCourseDoc(ctx, teacher, c.ID, "syllabus", "courses/s.pdf")
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("SetCourseDoc() error = %v, want a validation error for an unknown kind", err)
	}

	detail, err := svc.GetWithCourses(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetWithCourses() failed: %v", err)
	}
	if len(detail.Courses) != 1 {
		t.Errorf("GetWithCourses() Courses = %v, want 1", len(detail.Courses))
	}
}

func TestNewFormation_Validate(t *testing.T) {
	validate := validator.New()

	nf := catalog.NewFormation{Title: "Go 101", Description: "Intro", Price: decimal.NewFromInt(-5)}
	err := nf.Validate(validate)
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Validate() error = %v, want a validation error for a negative price", err)
	}

	nf.Price = decimal.Zero
	if err = nf.Validate(validate); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
