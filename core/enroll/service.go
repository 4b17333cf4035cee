package enroll

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrStudentsOnly    = errors.New("only students can buy formations")
	ErrPaymentSession  = errors.New("could not create the payment session")
	ErrMissingMetadata = errors.New("payment callback is missing its metadata")
)

type (
	Repository interface {
		// CreateEnrollment relies on the unique (student_id, formation_id)
		// constraint: inserting an existing pair returns the existing row
		// untouched (get-or-create).
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, formationID string, exec ...core.DBExecutor) (Enrollment, error)

		// CreatePurchase is get-or-create under the same uniqueness rule;
		// an existing row keeps its paid flag.
		CreatePurchase(ctx context.Context, p Purchase, exec ...core.DBExecutor) (Purchase, error)
		GetPurchase(ctx context.Context, studentID, formationID string, exec ...core.DBExecutor) (Purchase, error)
		MarkPurchasePaid(ctx context.Context, id string, exec ...core.DBExecutor) (Purchase, error)
		// QueryPurchasesByStudent returns the student's whole ledger.
		QueryPurchasesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Purchase, error)
		// QueryPurchasesByFormation returns the formation's ledger, one row
		// per student (the pair is unique), newest first.
		QueryPurchasesByFormation(ctx context.Context, formationID string, exec ...core.DBExecutor) ([]Purchase, error)
	}

	Service interface {
		// Enroll grants actor access to the formation: immediately when it is
		// free, via a checkout redirect when it is paid. Calling it for an
		// already-enrolled student is not an error.
		Enroll(ctx context.Context, actor user.User, formationID string) (EnrollResult, error)
		// ConfirmPayment reconciles a success callback. Safe to invoke more
		// than once for the same (student, formation); duplicates neither
		// error nor create extra rows.
		ConfirmPayment(ctx context.Context, actor user.User, formationID string) (EnrollResult, error)
		// CancelPayment handles the cancel callback; informational only.
		CancelPayment(ctx context.Context, actor user.User) EnrollResult

		IsEnrolled(ctx context.Context, studentID, formationID string) (bool, error)
		// PurchaseMap returns the student's ledger keyed by formation ID,
		// for attaching purchase state to catalog listings.
		PurchaseMap(ctx context.Context, studentID string) (map[string]Purchase, error)
		// Roster lists the unique students holding a ledger row for the
		// formation; owner or admin only.
		Roster(ctx context.Context, actor user.User, formationID string) ([]StudentRoster, error)
	}

	service struct {
		db         *sqlx.DB
		repo       Repository
		catalogSvc catalog.Service
		usrSvc     user.Service
		paySvc     PaymentService
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	db *sqlx.DB,
	repo Repository,
	catalogSvc catalog.Service,
	usrSvc user.Service,
	paySvc PaymentService,
	conf *core.Config,
) Service {
	return &service{
		db:         db,
		repo:       repo,
		catalogSvc: catalogSvc,
		usrSvc:     usrSvc,
		paySvc:     paySvc,
		conf:       conf,
	}
}

func (svc *service) Enroll(ctx context.Context, actor user.User, formationID string) (EnrollResult, error) {
	if !access.CanPurchase(actor) {
		return EnrollResult{}, ErrStudentsOnly
	}

	f, err := svc.catalogSvc.Get(ctx, formationID)
	if err != nil {
		return EnrollResult{}, err
	}

	if _, err = svc.repo.GetEnrollment(ctx, actor.ID, f.ID); err == nil {
		return EnrollResult{
			Outcome: OutcomeAlreadyEnrolled,
			Message: "you are already enrolled in this formation",
		}, nil
	} else if errors.Cause(err) != ErrNotFound {
		return EnrollResult{}, errors.Wrap(err, "checking enrollment")
	}

	if f.IsFree() {
		return svc.enrollFree(ctx, actor, f)
	}
	return svc.checkout(ctx, actor, f)
}

// enrollFree atomically records the enrollment and its paid ledger row.
func (svc *service) enrollFree(ctx context.Context, actor user.User, f catalog.Formation) (EnrollResult, error) {
	now := time.Now().UTC()
	err := core.Atomic(ctx, svc.db, func(tx core.DBExecutor) error {
		var execs []core.DBExecutor
		if tx != nil {
			execs = append(execs, tx)
		}
		if _, err := svc.repo.CreateEnrollment(ctx, Enrollment{
			StudentID:   actor.ID,
			FormationID: f.ID,
			CreatedAt:   now,
		}, execs...); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}
		if _, err := svc.repo.CreatePurchase(ctx, Purchase{
			StudentID:   actor.ID,
			FormationID: f.ID,
			IsPaid:      true, // free enrollments are considered paid
			PurchasedAt: now,
		}, execs...); err != nil {
			return errors.Wrap(err, "creating purchase")
		}
		return nil
	})
	if err != nil {
		return EnrollResult{}, err
	}
	return EnrollResult{
		Outcome:     OutcomeEnrolled,
		Message:     "enrollment successful, you now have access to this formation",
		RedirectURL: svc.formationURL(f.ID),
	}, nil
}

// checkout records an unpaid ledger row and hands off to the payment
// collaborator; access is only granted on the success callback.
func (svc *service) checkout(ctx context.Context, actor user.User, f catalog.Formation) (EnrollResult, error) {
	if _, err := svc.repo.CreatePurchase(ctx, Purchase{
		StudentID:   actor.ID,
		FormationID: f.ID,
		PurchasedAt: time.Now().UTC(),
	}); err != nil {
		return EnrollResult{}, errors.Wrap(err, "creating unpaid purchase")
	}

	redirectURL, err := svc.paySvc.CreateCheckoutSession(ctx, CheckoutParams{
		FormationID:    f.ID,
		FormationTitle: f.Title,
		StudentID:      actor.ID,
		Price:          f.Price,
		SuccessURL:     fmt.Sprintf("%s/payments/success?formation_id=%s", svc.conf.FrontendBaseURL, f.ID),
		CancelURL:      fmt.Sprintf("%s/payments/cancel", svc.conf.FrontendBaseURL),
	})
	if err != nil {
		return EnrollResult{}, errors.Wrap(ErrPaymentSession, err.Error())
	}
	return EnrollResult{
		Outcome:     OutcomeCheckout,
		Message:     "redirecting to checkout",
		RedirectURL: redirectURL,
	}, nil
}

func (svc *service) ConfirmPayment(ctx context.Context, actor user.User, formationID string) (EnrollResult, error) {
	if formationID == "" {
		return EnrollResult{}, ErrMissingMetadata
	}
	f, err := svc.catalogSvc.Get(ctx, formationID)
	if err != nil {
		return EnrollResult{}, err
	}

	// The callback may be delivered more than once; every step is
	// get-or-create guarded by the (student, formation) uniqueness.
	now := time.Now().UTC()
	err = core.Atomic(ctx, svc.db, func(tx core.DBExecutor) error {
		var execs []core.DBExecutor
		if tx != nil {
			execs = append(execs, tx)
		}
		if _, err := svc.repo.CreateEnrollment(ctx, Enrollment{
			StudentID:   actor.ID,
			FormationID: f.ID,
			CreatedAt:   now,
		}, execs...); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}

		p, err := svc.repo.CreatePurchase(ctx, Purchase{
			StudentID:   actor.ID,
			FormationID: f.ID,
			IsPaid:      true,
			PurchasedAt: now,
		}, execs...)
		if err != nil {
			return errors.Wrap(err, "creating purchase")
		}
		if !p.IsPaid {
			if _, err = svc.repo.MarkPurchasePaid(ctx, p.ID, execs...); err != nil {
				return errors.Wrap(err, "marking purchase paid")
			}
		}
		return nil
	})
	if err != nil {
		return EnrollResult{}, err
	}
	return EnrollResult{
		Outcome:     OutcomeEnrolled,
		Message:     "payment successful, you are now enrolled in this formation",
		RedirectURL: svc.formationURL(f.ID),
	}, nil
}

func (svc *service) CancelPayment(_ context.Context, _ user.User) EnrollResult {
	return EnrollResult{
		Outcome: OutcomeCancelled,
		Message: "payment cancelled, you have not been enrolled",
	}
}

func (svc *service) IsEnrolled(ctx context.Context, studentID, formationID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, studentID, formationID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) PurchaseMap(ctx context.Context, studentID string) (map[string]Purchase, error) {
	purchases, err := svc.repo.QueryPurchasesByStudent(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student purchases")
	}
	m := make(map[string]Purchase, len(purchases))
	for _, p := range purchases {
		m[p.FormationID] = p
	}
	return m, nil
}

func (svc *service) Roster(ctx context.Context, actor user.User, formationID string) ([]StudentRoster, error) {
	f, err := svc.catalogSvc.Get(ctx, formationID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewSubmissions(actor, f.TeacherID) {
		return nil, access.ErrPermissionDenied
	}

	purchases, err := svc.repo.QueryPurchasesByFormation(ctx, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying formation purchases")
	}

	roster := make([]StudentRoster, 0, len(purchases))
	for _, p := range purchases {
		line := StudentRoster{
			StudentID:   p.StudentID,
			IsPaid:      p.IsPaid,
			PurchasedAt: p.PurchasedAt,
		}
		if student, err := svc.usrSvc.GetByID(ctx, p.StudentID); err == nil {
			line.Name = student.DisplayName()
			line.Email = student.Email
		} else {
			line.Name = p.StudentID
		}
		roster = append(roster, line)
	}
	return roster, nil
}

func (svc *service) formationURL(id string) string {
	return fmt.Sprintf("%s/formations/%s", svc.conf.FrontendBaseURL, id)
}
