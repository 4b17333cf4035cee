package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
)

// NewConfig returns an app config suitable for tests: test mode on and
// media uploads kept under the test's temp dir.
func NewConfig(t *testing.T) *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Media.Root = t.TempDir()
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateFormation(
	t *testing.T,
	repo catalog.Repository,
	title string,
	price decimal.Decimal,
	teacherID string,
	isApproved bool,
	createdAt ...time.Time,
) catalog.Formation {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	f := catalog.Formation{
		Title:       title,
		Description: title + " description",
		Price:       price,
		TeacherID:   teacherID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	f, err := repo.CreateFormation(context.Background(), f)
	if err != nil {
		t.Fatalf("CreateFormation() failed: %v", err)
	}
	if isApproved {
		approved := true
		f.UpdatedAt = tstamp
		if f, err = repo.UpdateFormation(context.Background(), f, &approved); err != nil {
			t.Fatalf("CreateFormation() failed: %v", err)
		}
	}
	return f
}

func CreateCourse(
	t *testing.T,
	repo catalog.Repository,
	formationID, title string,
	createdAt ...time.Time,
) catalog.Course {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c := catalog.Course{
		FormationID: formationID,
		Title:       title,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateEnrollment(t *testing.T, repo enroll.Repository, studentID, formationID string) enroll.Enrollment {
	e, err := repo.CreateEnrollment(context.Background(), enroll.Enrollment{
		StudentID:   studentID,
		FormationID: formationID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return e
}

func CreatePurchase(t *testing.T, repo enroll.Repository, studentID, formationID string, isPaid bool) enroll.Purchase {
	p, err := repo.CreatePurchase(context.Background(), enroll.Purchase{
		StudentID:   studentID,
		FormationID: formationID,
		IsPaid:      isPaid,
		PurchasedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePurchase() failed: %v", err)
	}
	return p
}

func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	courseID, studentID, file, kind string,
	submittedAt ...time.Time,
) submission.Submission {
	tstamp := time.Now().UTC()
	if len(submittedAt) > 0 {
		tstamp = submittedAt[0].UTC()
	}
	s, err := repo.CreateSubmission(context.Background(), submission.Submission{
		CourseID:    courseID,
		StudentID:   studentID,
		File:        file,
		Kind:        kind,
		SubmittedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return s
}
