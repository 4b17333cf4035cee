package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/payment"
	"github.com/trezcool/academia/storage/database/dummy"
	"github.com/trezcool/academia/storage/files"
	"github.com/trezcool/academia/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type testApp struct {
	conf   *core.Config
	server Server

	usrRepo  user.Repository
	catRepo  catalog.Repository
	enrlRepo enroll.Repository
	subRepo  submission.Repository

	usrSvc user.Service
	paySvc *paymentsvc.DummyService
}

func setup(t *testing.T) *testApp {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig(t)
	logger := logsvc.NewTestLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))

	usrRepo := dummydb.NewUserRepository(db)
	catRepo := dummydb.NewCatalogRepository(db)
	enrlRepo := dummydb.NewEnrollRepository(db)
	subRepo := dummydb.NewSubmissionRepository(db)

	storage, err := localfs.NewStorage(conf)
	if err != nil {
		t.Fatalf("localfs.NewStorage() failed: %v", err)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	paySvc := paymentsvc.NewDummyService()

	usrSvc := user.NewService(nil, usrRepo, mailSvc, conf)
	catSvc := catalog.NewService(nil, catRepo)
	enrlSvc := enroll.NewService(nil, enrlRepo, catSvc, usrSvc, paySvc, conf)
	subSvc := submission.NewService(nil, subRepo, catSvc, enrlSvc, usrSvc)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	server := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CatalogSvc:    catSvc,
		EnrollSvc:     enrlSvc,
		SubmissionSvc: subSvc,
		MailSvc:       mailSvc,
		Storage:       storage,
		Validate:      validate,
		Translator:    translator,
	})

	return &testApp{
		conf:     conf,
		server:   server,
		usrRepo:  usrRepo,
		catRepo:  catRepo,
		enrlRepo: enrlRepo,
		subRepo:  subRepo,
		usrSvc:   usrSvc,
		paySvc:   paySvc,
	}
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(app.conf, usr)
	token, err := GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do runs the request against the server and returns the recorder.
func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart form request carrying one file plus
// any extra form fields.
func newUploadRequest(
	t *testing.T,
	method, path, token, field, filename string,
	content []byte,
	extra map[string]string,
) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if _, err = fw.Write(content); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	for k, v := range extra {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
