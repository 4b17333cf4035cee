// Package access holds the authorization predicates shared by every
// workflow operation. A refusal is a policy outcome surfaced to the caller
// as ErrPermissionDenied, never a server fault, and never mutates state.
package access

import (
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/user"
)

var ErrPermissionDenied = errors.New("permission denied")

// CanManageFormation reports whether usr may create, edit or delete a
// formation owned by ownerID. Admins bypass ownership.
func CanManageFormation(usr user.User, ownerID string) bool {
	if usr.IsAdmin() {
		return true
	}
	return usr.IsTeacher() && usr.ID == ownerID
}

// CanViewSubmissions reports whether usr may list or grade the submissions
// of a course whose formation is owned by ownerID.
func CanViewSubmissions(usr user.User, ownerID string) bool {
	return CanManageFormation(usr, ownerID)
}

// CanAccessContent reports whether usr may read a formation's course
// content and materials. Students need an enrollment; the owning teacher
// and admins always may.
func CanAccessContent(usr user.User, ownerID string, enrolled bool) bool {
	if usr.IsAdmin() || usr.ID == ownerID {
		return true
	}
	return usr.IsStudent() && enrolled
}

// CanPurchase reports whether usr may buy or enroll in formations.
func CanPurchase(usr user.User) bool {
	return usr.IsStudent()
}
