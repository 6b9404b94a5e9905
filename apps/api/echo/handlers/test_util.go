package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/edusuite/presence/apps/api/echo/helpers"
	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/attendance"
	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
	"github.com/edusuite/presence/core/session"
	emailsvc "github.com/edusuite/presence/services/email"
	inmemdb "github.com/edusuite/presence/storage/database/inmem"
)

var (
	initValidatorsOnce sync.Once

	errMissingToken = errBody{Error: "missing or malformed jwt"}
	errForbidden    = errBody{Error: "permission denied"}
)

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
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

type testApp struct {
	app      *echo.Echo
	conf     *core.Config
	identSvc *identity.Service
	sessSvc  *session.Service
	attSvc   *attendance.Service
	bus      *event.Bus
}

// testDirectory stands in for the external user store.
type testDirectory struct{}

func (testDirectory) PresenterEmail(_ context.Context, presenterID string) (mail.Address, error) {
	return mail.Address{Address: presenterID + "@test.local"}, nil
}

func initApp(t *testing.T) *testApp {
	conf := core.NewTestConfig()

	initValidatorsOnce.Do(func() {
		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ := uni.GetTranslator("en")
		core.InitValidators(core.Validate, translator)
	})

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("initApp() failed: %v", err)
	}

	log := core.NopLogger{}
	bus := event.NewBus(log)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	identSvc := identity.NewService(inmemdb.NewIdentityRepository(db), log)
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), identSvc, nil, bus, conf, log)
	sessSvc := session.NewService(inmemdb.NewSessionRepository(db), identSvc, bus, mailSvc, attSvc, testDirectory{}, conf, log)
	attSvc.SetSessionResolver(sessSvc)

	app := echo.New()
	app.Pre(middleware.RemoveTrailingSlash())
	app.HTTPErrorHandler = helpers.NewAppHTTPErrorHandler(log, func() {})
	app.HideBanner = true

	v1 := app.Group("/v1")
	jwt := helpers.ConfigureAuth(conf)
	RegisterIdentityAPI(v1, jwt, identSvc)
	RegisterSessionAPI(v1, jwt, sessSvc, attSvc)
	RegisterAttendanceAPI(v1, jwt, attSvc)
	RegisterEventsAPI(v1, jwt, bus, log)

	return &testApp{
		app:      app,
		conf:     conf,
		identSvc: identSvc,
		sessSvc:  sessSvc,
		attSvc:   attSvc,
		bus:      bus,
	}
}

func (ta *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	ta.app.ServeHTTP(rec, req)
}

// issueIdentity mints an identity token directly through the service.
func (ta *testApp) issueIdentity(t *testing.T, principalID string, role identity.Role) identity.Identity {
	ident, err := ta.identSvc.Issue(context.Background(), principalID, role)
	if err != nil {
		t.Fatalf("issueIdentity() failed: %v", err)
	}
	return ident
}

// openSession opens a session directly through the service.
func (ta *testApp) openSession(t *testing.T, presenterToken string, ns session.NewSession) session.ClassSession {
	sess, err := ta.sessSvc.Open(context.Background(), presenterToken, ns)
	if err != nil {
		t.Fatalf("openSession() failed: %v", err)
	}
	return sess
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// getToken mints a signed JWT the auth layer would have attached.
func getToken(t *testing.T, principalID, role string) string {
	claims := helpers.GetPrincipalClaims(principalID, role)
	token, err := helpers.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody() failed: %v; body = %s", err, rec.Body.String())
	}
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
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
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
