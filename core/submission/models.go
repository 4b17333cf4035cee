package submission

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Submission kinds. Two historical record shapes existed for the same
// real-world event (a student hands in work for a course); they survive as
// a tag on one unified entity. Only the course-submission shape carries a
// grade.
const (
	KindCourse     = "course"
	KindAssignment = "assignment"
)

// Submission is a student's uploaded work against a course. Created once;
// only the grade ever changes afterwards.
type Submission struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"course_id"`
	StudentID   string      `json:"student_id"`
	File        string      `json:"file"`
	Kind        string      `json:"kind"`
	Grade       null.String `json:"grade"`
	SubmittedAt time.Time   `json:"submitted_at"` // UTC

	// resolved at read time for the teacher's merged view; never persisted
	StudentName string `json:"student_name,omitempty"`
}

// kindRank orders equal-timestamp rows: the legacy course shape sorts
// before the assignment shape.
func kindRank(kind string) int {
	if kind == KindCourse {
		return 0
	}
	return 1
}
