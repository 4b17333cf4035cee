package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

func Test_catalogApi_publish(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marchallObj(t, map[string]interface{}{"title": "Go 101", "description": "Intro", "price": "50"})

	req, rec := newAuthRequest(http.MethodPost, "/v1/formations", app.getToken(t, student), body)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/formations", app.getToken(t, teacher), body)
	app.do(req, rec)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var f catalog.Formation
	_ = json.Unmarshal(rec.Body.Bytes(), &f)
	if f.TeacherID != teacher.ID || f.IsApproved {
		t.Errorf("publish = %+v, want the teacher's unapproved formation", f)
	}

	// negative prices are rejected at the edge
	body = marchallObj(t, map[string]interface{}{"title": "Bad", "description": "Bad", "price": "-1"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/formations", app.getToken(t, teacher), body)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"price": "price must not be negative"}),
	}, rec)
}

func Test_catalogApi_list(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	approved := testutil.CreateFormation(t, app.catRepo, "Approved", decimal.Zero, teacher.ID, true)
	testutil.CreateFormation(t, app.catRepo, "Pending", decimal.NewFromInt(10), teacher.ID, false)
	testutil.CreateEnrollment(t, app.enrlRepo, student.ID, approved.ID)
	testutil.CreatePurchase(t, app.enrlRepo, student.ID, approved.ID, true)

	list := func(token string) []catalog.Formation {
		req, rec := newAuthRequest(http.MethodGet, "/v1/formations", token)
		app.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("list failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
		var fs []catalog.Formation
		if err := json.Unmarshal(rec.Body.Bytes(), &fs); err != nil {
			t.Fatalf("unmarshalling formations failed: %v", err)
		}
		return fs
	}

	got := list(app.getToken(t, student))
	if len(got) != 1 || got[0].ID != approved.ID {
		t.Fatalf("student list = %v formations, want only the approved one", len(got))
	}
	// the student's ledger state rides along
	if !got[0].Purchased || !got[0].Paid {
		t.Errorf("student list = %+v, want purchased+paid attached", got[0])
	}

	if got = list(app.getToken(t, admin)); len(got) != 2 {
		t.Errorf("admin list = %v formations, want 2", len(got))
	}

	// the owner sees everything of their own under /mine
	req, rec := newAuthRequest(http.MethodGet, "/v1/formations/mine", app.getToken(t, teacher))
	app.do(req, rec)
	var mine []catalog.Formation
	_ = json.Unmarshal(rec.Body.Bytes(), &mine)
	if rec.Code != http.StatusOK || len(mine) != 2 {
		t.Errorf("mine = code %v, %v formations; want 200 with 2", rec.Code, len(mine))
	}
}

func Test_catalogApi_retrieve(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	f := testutil.CreateFormation(t, app.catRepo, "Go 101", decimal.Zero, teacher.ID, true)
	c := testutil.CreateCourse(t, app.catRepo, f.ID, "Interfaces")
	testutil.CreateEnrollment(t, app.enrlRepo, student.ID, f.ID)
	testutil.CreateSubmission(t, app.subRepo, c.ID, student.ID, "s/a.pdf", "course")

	req, rec := newAuthRequest(http.MethodGet, "/v1/formations/"+f.ID, app.getToken(t, student))
	app.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var detail struct {
		catalog.Formation
		IsEnrolled         bool     `json:"is_enrolled"`
		SubmittedCourseIDs []string `json:"submitted_course_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshalling detail failed: %v", err)
	}
	if !detail.IsEnrolled {
		t.Error("retrieve is_enrolled = false, want true")
	}
	if len(detail.Courses) != 1 {
		t.Errorf("retrieve courses = %v, want 1", len(detail.Courses))
	}
	if len(detail.SubmittedCourseIDs) != 1 || detail.SubmittedCourseIDs[0] != c.ID {
		t.Errorf("retrieve submitted_course_ids = %v, want [%v]", detail.SubmittedCourseIDs, c.ID)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/formations/ghost", app.getToken(t, student))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "formation not found"})}, rec)
}

func Test_catalogApi_update(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	rival := testutil.CreateUser(t, app.usrRepo, "Rival", "rival1", "rival@test.cd", "", []string{user.RoleTeacher}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	f := testutil.CreateFormation(t, app.catRepo, "Go 101", decimal.NewFromInt(50), teacher.ID, false)

	req, rec := newAuthRequest(http.MethodPut, "/v1/formations/"+f.ID, app.getToken(t, rival),
		marchallObj(t, map[string]interface{}{"title": "Stolen"}))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	// approval only moves when an admin says so
	req, rec = newAuthRequest(http.MethodPut, "/v1/formations/"+f.ID, app.getToken(t, teacher),
		marchallObj(t, map[string]interface{}{"is_approved": true}))
	app.do(req, rec)
	var updated catalog.Formation
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if rec.Code != http.StatusOK || updated.IsApproved {
		t.Errorf("teacher self-approval: code = %v, is_approved = %v; want 200 and false", rec.Code, updated.IsApproved)
	}

	req, rec = newAuthRequest(http.MethodPut, "/v1/formations/"+f.ID, app.getToken(t, admin),
		marchallObj(t, map[string]interface{}{"is_approved": true}))
	app.do(req, rec)
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if rec.Code != http.StatusOK || !updated.IsApproved {
		t.Errorf("admin approval: code = %v, is_approved = %v; want 200 and true", rec.Code, updated.IsApproved)
	}
}

func Test_catalogApi_courseDocs(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	enrolled := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Out", "outer1", "out@test.cd", "", []string{user.RoleStudent}, true)

	f := testutil.CreateFormation(t, app.catRepo, "Go 101", decimal.Zero, teacher.ID, true)
	c := testutil.CreateCourse(t, app.catRepo, f.ID, "Interfaces")
	testutil.CreateEnrollment(t, app.enrlRepo, enrolled.ID, f.ID)

	// course documents are PDF only
	req, rec := newUploadRequest(t, http.MethodPut, "/v1/courses/"+c.ID+"/files/reference",
		app.getToken(t, teacher), "file", "notes.docx", []byte("doc"), nil)
	app.do(req, rec)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "only PDF accepted") {
		t.Errorf("docx upload: code = %v; body = %v", rec.Code, rec.Body.String())
	}

	req, rec = newUploadRequest(t, http.MethodPut, "/v1/courses/"+c.ID+"/files/reference",
		app.getToken(t, teacher), "file", "notes.pdf", []byte("pdf bytes"), nil)
	app.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf upload failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}

	// enrolled students read it, outsiders do not
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+c.ID+"/files/reference", app.getToken(t, enrolled))
	app.do(req, rec)
	if rec.Code != http.StatusOK || rec.Body.String() != "pdf bytes" {
		t.Errorf("enrolled download: code = %v; body = %v", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+c.ID+"/files/reference", app.getToken(t, outsider))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	// a kind that was never uploaded is simply absent
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+c.ID+"/files/practice", app.getToken(t, enrolled))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
}
