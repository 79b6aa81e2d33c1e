package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/nxuacademy/backend/core"
	"github.com/nxuacademy/backend/core/billing"
	"github.com/nxuacademy/backend/core/waitlist"
	emailsvc "github.com/nxuacademy/backend/services/email"
	paymentsvc "github.com/nxuacademy/backend/services/payment"
	dummydb "github.com/nxuacademy/backend/storage/database/dummy"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                        {}
func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func newTestConfig() *core.Config {
	return &core.Config{
		AppName:          "NXU Academy",
		TestMode:         true,
		Currency:         "gbp",
		WorkDir:          filepath.Join("..", "..", ".."),
		FrontendBaseURL:  "https://nxu.test",
		DefaultFromEmail: mail.Address{Name: "NXU Academy", Address: "noreply@nxu.test"},
	}
}

type testDeps struct {
	server     Server
	repo       billing.Repository
	reconciler *billing.Reconciler
}

func setup(t *testing.T) testDeps {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	billingRepo := dummydb.NewBillingRepository(db)
	waitlistRepo := dummydb.NewWaitlistRepository(db)

	conf := newTestConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	gw := paymentsvc.NewDummyGateway()

	billingSvc := billing.NewService(billingRepo, gw, mailSvc, conf, nopLogger{})
	reconciler := billing.NewReconciler(billingRepo, mailSvc, conf, nopLogger{})
	waitlistSvc := waitlist.NewService(waitlistRepo, mailSvc, conf)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, nopLogger{})

	emailsvc.ClearSentMessages()

	server := NewServer(ServerDeps{
		Conf:        conf,
		Logger:      nopLogger{},
		BillingSvc:  billingSvc,
		Reconciler:  reconciler,
		Gateway:     gw,
		WaitlistSvc: waitlistSvc,
		Validate:    validate,
		Translator:  translator,
	})
	return testDeps{server: server, repo: billingRepo, reconciler: reconciler}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
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

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; data: %s", err, data)
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
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// enrollStudent drives POST /enrollments and returns the created records.
func enrollStudent(t *testing.T, deps testDeps, email string) billing.EnrollmentResult {
	t.Helper()

	body := marchallObj(t, map[string]string{
		"full_name": "Ada Student",
		"email":     email,
		"phone":     "+44700000001",
		"course_id": "AWS_CLOUD_PRACTITIONER",
	})
	req, rec := newRequest(http.MethodPost, "/enrollments", body)
	deps.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("enrollStudent() failed: code = %d, body %s", rec.Code, rec.Body.String())
	}
	var res billing.EnrollmentResult
	unmarshallObj(t, rec.Body.Bytes(), &res)
	return res
}

// paymentEventBody builds the raw payload the dummy gateway accepts.
func paymentEventBody(t *testing.T, kind, txn string, amount int64, planID, studentID int, paymentType string) []byte {
	t.Helper()
	return marchallObj(t, map[string]interface{}{
		"kind":           kind,
		"transaction_id": txn,
		"amount":         amount,
		"plan_id":        planID,
		"student_id":     studentID,
		"type":           paymentType,
	})
}
