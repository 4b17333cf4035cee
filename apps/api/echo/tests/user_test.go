package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	body := func(name, uname, email, pwd, role string) []byte {
		return marchallObj(t, map[string]string{
			"name":             name,
			"username":         uname,
			"email":            email,
			"password":         pwd,
			"password_confirm": pwd,
			"role":             role,
		})
	}

	req, rec := newRequest(http.MethodPost, "/v1/users/register", body("Hero", "hero01", "hero@test.cd", "LeagueOfLegends#99", "student"))
	app.do(req, rec)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("unmarshalling user failed: %v", err)
	}
	if len(usr.Roles) != 1 || usr.Roles[0] != user.RoleStudent {
		t.Errorf("register Roles = %v, want [%v]", usr.Roles, user.RoleStudent)
	}
	if !usr.IsActive {
		t.Error("register must activate the account")
	}

	tests := []httpTest{
		{
			name: "duplicate email", method: http.MethodPost, path: "/v1/users/register",
			body:     body("Other", "other1", "hero@test.cd", "LeagueOfLegends#99", "teacher"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "admin sign-up rejected", method: http.MethodPost, path: "/v1/users/register",
			body:     body("Sneaky", "sneak1", "sneak@test.cd", "LeagueOfLegends#99", "admin"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/users/register",
			body:     body("Weak", "weak01", "weak@test.cd", "short", "student"),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "LeagueOfLegends#99", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog01", "ndog@test.cd", "LeagueOfLegends#99", []string{user.RoleStudent}, false)

	body := func(uname, pwd string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{
			name: "unknown user", body: body("ghost", "LeagueOfLegends#99"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: body("hero01", "nope nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: body("ndog01", "LeagueOfLegends#99"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", body: body("hero01", "LeagueOfLegends#99"), wantCode: http.StatusOK},
		{name: "login with email", body: body("hero@test.cd", "LeagueOfLegends#99"), wantCode: http.StatusOK},
		{name: "case-insensitive", body: body("Hero01", "LeagueOfLegends#99"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.do(req, rec)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var res struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil || res.Token == "" {
					t.Errorf("login did not return a token: %v", rec.Body.String())
				}
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	req, rec := newRequest(http.MethodGet, "/v1/users/me")
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", app.getToken(t, usr))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, usr)}, rec)
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name: "admin required", token: app.getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all users", token: app.getToken(t, admin), wantCode: http.StatusOK},
		{name: "search", path: "?search=hero", token: app.getToken(t, admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users"+tt.path, tt.token)
			app.do(req, rec)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var users []user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
					t.Fatalf("unmarshalling users failed: %v", err)
				}
				if tt.path != "" && (len(users) != 1 || users[0].ID != student.ID) {
					t.Errorf("query = %v users, want the searched student", len(users))
				}
			}
		})
	}
}

func Test_userApi_update(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	// self-service rename is fine
	req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, app.getToken(t, student),
		marchallObj(t, map[string]interface{}{"name": "Hero Renamed"}))
	app.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Errorf("self update failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}

	// non-admins cannot touch role or account state
	for _, body := range []map[string]interface{}{
		{"is_active": false},
		{"roles": []string{user.RoleTeacher}},
		{"email": "new@test.cd"},
	} {
		req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, app.getToken(t, student), marchallObj(t, body))
		app.do(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	}

	// other users' accounts do not exist as far as a student can see
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+admin.ID, app.getToken(t, student),
		marchallObj(t, map[string]interface{}{"name": "Pwned"}))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)

	// admins flip account state
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, app.getToken(t, admin),
		marchallObj(t, map[string]interface{}{"is_active": false}))
	app.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var updated user.User
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.IsActive {
		t.Error("admin update did not deactivate the account")
	}

	// but cannot hand out roles above their own
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, app.getToken(t, admin),
		marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdminOwner}}))
	app.do(req, rec)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
	}, rec)
}

func Test_userApi_cv(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teach1", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	// students have no CV to upload
	req, rec := newUploadRequest(t, http.MethodPut, "/v1/users/me/cv", app.getToken(t, student), "cv", "cv.pdf", []byte("pdf"), nil)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	// only documents are accepted
	req, rec = newUploadRequest(t, http.MethodPut, "/v1/users/me/cv", app.getToken(t, teacher), "cv", "cv.exe", []byte("MZ"), nil)
	app.do(req, rec)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "only PDF/DOCX accepted") {
		t.Errorf("exe upload: code = %v; body = %v", rec.Code, rec.Body.String())
	}

	req, rec = newUploadRequest(t, http.MethodPut, "/v1/users/me/cv", app.getToken(t, teacher), "cv", "cv.pdf", []byte("pdf bytes"), nil)
	app.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("cv upload failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
	var updated user.User
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if !updated.CV.Valid {
		t.Fatal("cv upload did not set the reference")
	}

	// any authed user may read a teacher's CV
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+teacher.ID+"/cv", app.getToken(t, student))
	app.do(req, rec)
	if rec.Code != http.StatusOK || rec.Body.String() != "pdf bytes" {
		t.Errorf("cv download: code = %v; body = %v", rec.Code, rec.Body.String())
	}
}
