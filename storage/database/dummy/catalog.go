package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/catalog"
)

type catalogRepository struct {
	formations *formationTable
	courses    *courseTable
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{formations: db.formation, courses: db.course}
}

func (repo *catalogRepository) CreateFormation(_ context.Context, f catalog.Formation, _ ...core.DBExecutor) (catalog.Formation, error) {
	repo.formations.Lock()
	defer repo.formations.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	repo.formations.table[f.ID] = &f
	return f, nil
}

func (repo *catalogRepository) GetFormationByID(_ context.Context, id string, _ ...core.DBExecutor) (catalog.Formation, error) {
	repo.formations.RLock()
	defer repo.formations.RUnlock()

	if f, ok := repo.formations.table[id]; ok {
		return *f, nil
	}
	return catalog.Formation{}, catalog.ErrFormationNotFound
}

func (repo *catalogRepository) QueryFormations(_ context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]catalog.Formation, error) {
	repo.formations.RLock()
	defer repo.formations.RUnlock()

	formations := make([]catalog.Formation, 0, len(repo.formations.table))
	for _, f := range repo.formations.table {
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !(strings.Contains(strings.ToLower(f.Title), search) ||
					strings.Contains(strings.ToLower(f.Description), search)) {
					continue
				}
			}
			if filter.TeacherID != "" && f.TeacherID != filter.TeacherID {
				continue
			}
			if filter.ApprovedOnly && !f.IsApproved {
				continue
			}
		}
		formations = append(formations, *f)
	}

	sort.Slice(formations, func(i, j int) bool { return formations[i].CreatedAt.After(formations[j].CreatedAt) })
	if len(ordering) > 0 && ordering[0].Field == "created_at" && ordering[0].Ascending {
		sort.Slice(formations, func(i, j int) bool { return formations[i].CreatedAt.Before(formations[j].CreatedAt) })
	}
	return formations, nil
}

func (repo *catalogRepository) UpdateFormation(_ context.Context, f catalog.Formation, isApproved *bool, _ ...core.DBExecutor) (catalog.Formation, error) {
	repo.formations.Lock()
	defer repo.formations.Unlock()

	orig, ok := repo.formations.table[f.ID]
	if !ok {
		return catalog.Formation{}, catalog.ErrFormationNotFound
	}

	orig.Title = f.Title
	orig.Description = f.Description
	orig.Price = f.Price
	orig.UpdatedAt = f.UpdatedAt
	if isApproved != nil {
		orig.IsApproved = *isApproved
	}
	return *orig, nil
}

func (repo *catalogRepository) DeleteFormation(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.formations.Lock()
	defer repo.formations.Unlock()

	if _, ok := repo.formations.table[id]; !ok {
		return catalog.ErrFormationNotFound
	}
	delete(repo.formations.table, id)

	// cascade
	repo.courses.Lock()
	defer repo.courses.Unlock()
	for cid, c := range repo.courses.table {
		if c.FormationID == id {
			delete(repo.courses.table, cid)
		}
	}
	return nil
}

func (repo *catalogRepository) CreateCourse(_ context.Context, c catalog.Course, _ ...core.DBExecutor) (catalog.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	repo.courses.table[c.ID] = &c
	return c, nil
}

func (repo *catalogRepository) GetCourseByID(_ context.Context, id string, _ ...core.DBExecutor) (catalog.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if c, ok := repo.courses.table[id]; ok {
		return *c, nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) QueryCoursesByFormation(_ context.Context, formationID string, _ ...core.DBExecutor) ([]catalog.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	var courses []catalog.Course
	for _, c := range repo.courses.table {
		if c.FormationID == formationID {
			courses = append(courses, *c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *catalogRepository) UpdateCourse(_ context.Context, c catalog.Course, _ ...core.DBExecutor) (catalog.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	if _, ok := repo.courses.table[c.ID]; !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	repo.courses.table[c.ID] = &c
	return c, nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	if _, ok := repo.courses.table[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	delete(repo.courses.table, id)
	return nil
}
