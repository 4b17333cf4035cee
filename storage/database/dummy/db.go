// Package dummydb provides in-memory repositories so the services and the
// API can run and be tested without a live database.
package dummydb

import (
	"sync"

	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user       *userTable
		formation  *formationTable
		course     *courseTable
		enrollment *enrollmentTable
		purchase   *purchaseTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	formationTable struct {
		sync.RWMutex
		table map[string]*catalog.Formation
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*catalog.Course
	}

	enrollmentTable struct {
		sync.RWMutex
		table map[string]*enroll.Enrollment
	}

	purchaseTable struct {
		sync.RWMutex
		table map[string]*enroll.Purchase
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*submission.Submission
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		formation:  &formationTable{table: make(map[string]*catalog.Formation)},
		course:     &courseTable{table: make(map[string]*catalog.Course)},
		enrollment: &enrollmentTable{table: make(map[string]*enroll.Enrollment)},
		purchase:   &purchaseTable{table: make(map[string]*enroll.Purchase)},
		submission: &submissionTable{table: make(map[string]*submission.Submission)},
	}
	return db, nil
}
