package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enroll"
)

type enrollRepository struct {
	enrollments *enrollmentTable
	purchases   *purchaseTable
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db *DB) enroll.Repository {
	return &enrollRepository{enrollments: db.enrollment, purchases: db.purchase}
}

func (repo *enrollRepository) CreateEnrollment(_ context.Context, e enroll.Enrollment, _ ...core.DBExecutor) (enroll.Enrollment, error) {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	// get-or-create on the (student, formation) pair
	for _, existing := range repo.enrollments.table {
		if existing.StudentID == e.StudentID && existing.FormationID == e.FormationID {
			return *existing, nil
		}
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	repo.enrollments.table[e.ID] = &e
	return e, nil
}

func (repo *enrollRepository) GetEnrollment(_ context.Context, studentID, formationID string, _ ...core.DBExecutor) (enroll.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	for _, e := range repo.enrollments.table {
		if e.StudentID == studentID && e.FormationID == formationID {
			return *e, nil
		}
	}
	return enroll.Enrollment{}, enroll.ErrNotFound
}

func (repo *enrollRepository) CreatePurchase(_ context.Context, p enroll.Purchase, _ ...core.DBExecutor) (enroll.Purchase, error) {
	repo.purchases.Lock()
	defer repo.purchases.Unlock()

	// get-or-create; an existing row keeps its paid flag
	for _, existing := range repo.purchases.table {
		if existing.StudentID == p.StudentID && existing.FormationID == p.FormationID {
			return *existing, nil
		}
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.purchases.table[p.ID] = &p
	return p, nil
}

func (repo *enrollRepository) GetPurchase(_ context.Context, studentID, formationID string, _ ...core.DBExecutor) (enroll.Purchase, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	for _, p := range repo.purchases.table {
		if p.StudentID == studentID && p.FormationID == formationID {
			return *p, nil
		}
	}
	return enroll.Purchase{}, enroll.ErrNotFound
}

func (repo *enrollRepository) MarkPurchasePaid(_ context.Context, id string, _ ...core.DBExecutor) (enroll.Purchase, error) {
	repo.purchases.Lock()
	defer repo.purchases.Unlock()

	p, ok := repo.purchases.table[id]
	if !ok {
		return enroll.Purchase{}, enroll.ErrNotFound
	}
	p.IsPaid = true
	return *p, nil
}

func (repo *enrollRepository) QueryPurchasesByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]enroll.Purchase, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	var purchases []enroll.Purchase
	for _, p := range repo.purchases.table {
		if p.StudentID == studentID {
			purchases = append(purchases, *p)
		}
	}
	sortPurchases(purchases)
	return purchases, nil
}

func (repo *enrollRepository) QueryPurchasesByFormation(_ context.Context, formationID string, _ ...core.DBExecutor) ([]enroll.Purchase, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	var purchases []enroll.Purchase
	for _, p := range repo.purchases.table {
		if p.FormationID == formationID {
			purchases = append(purchases, *p)
		}
	}
	sortPurchases(purchases)
	return purchases, nil
}

func sortPurchases(purchases []enroll.Purchase) {
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].PurchasedAt.After(purchases[j].PurchasedAt) })
}
