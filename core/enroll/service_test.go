package enroll_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
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
	conf    *core.Config
	svc     enroll.Service
	repo    enroll.Repository
	catRepo catalog.Repository
	usrRepo user.Repository
	paySvc  *paymentsvc.DummyService
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig(t)
	usrRepo := dummydb.NewUserRepository(db)
	catRepo := dummydb.NewCatalogRepository(db)
	repo := dummydb.NewEnrollRepository(db)

	usrSvc := user.NewService(nil, usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	catSvc := catalog.NewService(nil, catRepo)
	paySvc := paymentsvc.NewDummyService()

	return &fixture{
		conf:    conf,
		svc:     enroll.NewService(nil, repo, catSvc, usrSvc, paySvc, conf),
		repo:    repo,
		catRepo: catRepo,
		usrRepo: usrRepo,
		paySvc:  paySvc,
	}
}

func (fix *fixture) student(t *testing.T) user.User {
	return testutil.CreateUser(t, fix.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
}

func TestService_Enroll_free(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := fix.student(t)
	f := testutil.CreateFormation(t, fix.catRepo, "Free Go", decimal.Zero, teacher.ID, true)

	res, err := fix.svc.Enroll(ctx, student, f.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if res.Outcome != enroll.OutcomeEnrolled {
		t.Errorf("Enroll() Outcome = %v, want %v", res.Outcome, enroll.OutcomeEnrolled)
	}
	if !strings.Contains(res.RedirectURL, "/formations/"+f.ID) {
		t.Errorf("Enroll() RedirectURL = %v, want the formation detail", res.RedirectURL)
	}

	enrolled, err := fix.svc.IsEnrolled(ctx, student.ID, f.ID)
	if err != nil {
		t.Fatalf("IsEnrolled() failed: %v", err)
	}
	if !enrolled {
		t.Error("IsEnrolled() = false after a free enrollment")
	}

	// free enrollments settle the ledger immediately
	purchases, err := fix.repo.QueryPurchasesByStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("QueryPurchasesByStudent() failed: %v", err)
	}
	if len(purchases) != 1 || !purchases[0].IsPaid {
		t.Errorf("ledger = %+v, want a single paid purchase", purchases)
	}

	// a second call changes nothing
	res, err = fix.svc.Enroll(ctx, student, f.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if res.Outcome != enroll.OutcomeAlreadyEnrolled {
		t.Errorf("Enroll() Outcome = %v, want %v", res.Outcome, enroll.OutcomeAlreadyEnrolled)
	}
	if purchases, _ = fix.repo.QueryPurchasesByStudent(ctx, student.ID); len(purchases) != 1 {
		t.Errorf("ledger grew to %v rows on re-enrollment, want 1", len(purchases))
	}
}

func TestService_Enroll_paid(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := fix.student(t)
	f := testutil.CreateFormation(t, fix.catRepo, "Paid Go", decimal.NewFromInt(50), teacher.ID, true)

	res, err := fix.svc.Enroll(ctx, student, f.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if res.Outcome != enroll.OutcomeCheckout {
		t.Errorf("Enroll() Outcome = %v, want %v", res.Outcome, enroll.OutcomeCheckout)
	}
	if res.RedirectURL == "" {
		t.Error("Enroll() RedirectURL is empty, want the checkout URL")
	}
	if len(fix.paySvc.Sessions) != 1 {
		t.Fatalf("payment sessions = %v, want 1", len(fix.paySvc.Sessions))
	}
	if got := fix.paySvc.Sessions[0].MinorUnits(); got != 5000 {
		t.Errorf("checkout amount = %v, want 5000 minor units", got)
	}

	// no access until the callback confirms payment
	if enrolled, _ := fix.svc.IsEnrolled(ctx, student.ID, f.ID); enrolled {
		t.Error("IsEnrolled() = true before the payment callback")
	}
	p, err := fix.repo.GetPurchase(ctx, student.ID, f.ID)
	if err != nil {
		t.Fatalf("GetPurchase() failed: %v", err)
	}
	if p.IsPaid {
		t.Error("purchase recorded as paid before the callback")
	}
}

func TestService_Enroll_studentsOnly(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	f := testutil.CreateFormation(t, fix.catRepo, "Go 101", decimal.Zero, teacher.ID, true)

	for _, usr := range []user.User{teacher, rival, admin} {
		if _, err := fix.svc.Enroll(ctx, usr, f.ID); err != enroll.ErrStudentsOnly {
			t.Errorf("Enroll(%v) error = %v, wantErr %v", usr.Roles, err, enroll.ErrStudentsOnly)
		}
	}
}

func TestService_ConfirmPayment(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := fix.student(t)
	f := testutil.CreateFormation(t, fix.catRepo, "Paid Go", decimal.NewFromInt(50), teacher.ID, true)

	if _, err := fix.svc.Enroll(ctx, student, f.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	// the provider may deliver the callback more than once
	for i := 0; i < 2; i++ {
		res, err := fix.svc.ConfirmPayment(ctx, student, f.ID)
		if err != nil {
			t.Fatalf("ConfirmPayment() #%d failed: %v", i+1, err)
		}
		if res.Outcome != enroll.OutcomeEnrolled {
			t.Errorf("ConfirmPayment() Outcome = %v, want %v", res.Outcome, enroll.OutcomeEnrolled)
		}
	}

	if enrolled, _ := fix.svc.IsEnrolled(ctx, student.ID, f.ID); !enrolled {
		t.Error("IsEnrolled() = false after payment confirmation")
	}
	purchases, err := fix.repo.QueryPurchasesByStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("QueryPurchasesByStudent() failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("ledger = %v rows after a replayed callback, want 1", len(purchases))
	}
	if !purchases[0].IsPaid {
		t.Error("purchase still unpaid after confirmation")
	}
}

func TestService_ConfirmPayment_missingMetadata(t *testing.T) {
	fix := setup(t)

	student := fix.student(t)
	if _, err := fix.svc.ConfirmPayment(context.Background(), student, ""); err != enroll.ErrMissingMetadata {
		t.Errorf("ConfirmPayment() error = %v, wantErr %v", err, enroll.ErrMissingMetadata)
	}
}

func TestService_CancelPayment(t *testing.T) {
	fix := setup(t)

	student := fix.student(t)
	res := fix.svc.CancelPayment(context.Background(), student)
	if res.Outcome != enroll.OutcomeCancelled {
		t.Errorf("CancelPayment() Outcome = %v, want %v", res.Outcome, enroll.OutcomeCancelled)
	}
	if !strings.Contains(res.Message, "cancelled") {
		t.Errorf("CancelPayment() Message = %v", res.Message)
	}
}

func TestService_PurchaseMap(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := fix.student(t)
	free := testutil.CreateFormation(t, fix.catRepo, "Free Go", decimal.Zero, teacher.ID, true)
	paid := testutil.CreateFormation(t, fix.catRepo, "Paid Go", decimal.NewFromInt(50), teacher.ID, true)

	if _, err := fix.svc.Enroll(ctx, student, free.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if _, err := fix.svc.Enroll(ctx, student, paid.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	m, err := fix.svc.PurchaseMap(ctx, student.ID)
	if err != nil {
		t.Fatalf("PurchaseMap() failed: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("PurchaseMap() = %v entries, want 2", len(m))
	}
	if !m[free.ID].IsPaid {
		t.Error("PurchaseMap() free formation not marked paid")
	}
	if m[paid.ID].IsPaid {
		t.Error("PurchaseMap() unsettled checkout marked paid")
	}
}

func TestService_Roster(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	student := fix.student(t)
	f := testutil.CreateFormation(t, fix.catRepo, "Free Go", decimal.Zero, teacher.ID, true)
	if _, err := fix.svc.Enroll(ctx, student, f.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if _, err := fix.svc.Roster(ctx, rival, f.ID); err != access.ErrPermissionDenied {
		t.Errorf("Roster() error = %v, wantErr %v", err, access.ErrPermissionDenied)
	}

	for _, usr := range []user.User{teacher, admin} {
		roster, err := fix.svc.Roster(ctx, usr, f.ID)
		if err != nil {
			t.Fatalf("Roster(%v) failed: %v", usr.Roles, err)
		}
		if len(roster) != 1 {
			t.Fatalf("Roster() = %v lines, want 1", len(roster))
		}
		line := roster[0]
		if line.StudentID != student.ID || line.Name != student.Name || line.Email != student.Email || !line.IsPaid {
			t.Errorf("Roster() line = %+v, want the enrolled student's settled row", line)
		}
	}
}
