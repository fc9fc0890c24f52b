package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
	"github.com/hospital/hospital-backend/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func withIdentity(sub string, groups ...string) func(*http.Request) {
	return func(req *http.Request) {
		id := auth.Identity{Subject: sub, Roles: auth.NewRoleSet(groups...)}
		*req = *req.WithContext(auth.WithIdentity(req.Context(), id))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_RecordsOwnRecordRead(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/me/record", withIdentity("user-1", "GroupPatients"))
	c.Set("request_id", "req-1")

	if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}

	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", entry.UserID)
	}
	if entry.View != "own_record" {
		t.Errorf("expected own_record, got %q", entry.View)
	}
	if entry.Action != "read" {
		t.Errorf("expected read, got %q", entry.Action)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("expected req-1, got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", entry.StatusCode)
	}
	if entry.EventID == "" {
		t.Error("expected event id to be set")
	}
	if len(entry.UserRoles) != 1 || entry.UserRoles[0] != "GroupPatients" {
		t.Errorf("expected [GroupPatients], got %v", entry.UserRoles)
	}
}

func TestAudit_CapturesErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/admin/metrics/overview", withIdentity("user-2", "GroupPatients"))

	handler := func(c echo.Context) error {
		return apperr.Forbidden("forbidden")
	}

	c.Echo().HTTPErrorHandler = func(err error, c echo.Context) {
		if ae, ok := apperr.As(err); ok {
			_ = c.JSON(ae.HTTPStatus, map[string]string{"message": ae.Message})
		}
	}

	if err := Audit(zerolog.New(os.Stderr), rec)(handler)(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}

	entry := rec.last()
	if entry.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", entry.StatusCode)
	}
	if entry.View != "admin_metrics_overview" {
		t.Errorf("expected admin_metrics_overview, got %q", entry.View)
	}
}

func TestAudit_PutIsUpdate(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodPut, "/me/record", withIdentity("user-3"))

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}
	if err := Audit(zerolog.New(os.Stderr), rec)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.last().Action; got != "update" {
		t.Errorf("expected update, got %q", got)
	}
}

func TestAudit_SkipsPublicPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/health", "/metrics", "/"} {
		c, _ := newTestContext(http.MethodGet, path)
		if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_SkipsPreflight(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodOptions, "/me/record")
	if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderFailureDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("queue unavailable")}
	c, httpRec := newTestContext(http.MethodGet, "/patient/me", withIdentity("user-4"))

	if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
	if rec.count() != 1 {
		t.Errorf("expected recorder to be called once, got %d", rec.count())
	}
}

func TestAudit_NilRecorderLogsOnly(t *testing.T) {
	c, httpRec := newTestContext(http.MethodGet, "/patient/me", withIdentity("user-5"))
	if err := Audit(zerolog.New(os.Stderr), nil)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAuditView(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/patient/me", "patient_profile"},
		{"/me/record", "own_record"},
		{"/admin/metrics", "admin_metrics"},
		{"/admin/metrics/", "admin_metrics"},
		{"/admin/metrics/diseases", "admin_metrics_diseases"},
		{"/other", "unknown"},
	}
	for _, tt := range tests {
		if got := auditView(tt.path); got != tt.want {
			t.Errorf("auditView(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(_ context.Context, e AuditEntry) error {
		got = e
		return nil
	})
	if err := f.RecordAccess(context.Background(), AuditEntry{EventID: "evt-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventID != "evt-1" {
		t.Errorf("expected evt-1, got %q", got.EventID)
	}
}

// fakeSQS captures SendMessage calls.
type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSRecorder_SendsJSONEntry(t *testing.T) {
	client := &fakeSQS{}
	r := NewSQSRecorder(client, "https://sqs.us-east-1.amazonaws.com/123/audit")

	entry := AuditEntry{EventID: "evt-9", UserID: "user-9", View: "own_record", Action: "read", StatusCode: 200}
	if err := r.RecordAccess(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.inputs))
	}

	in := client.inputs[0]
	if *in.QueueUrl != "https://sqs.us-east-1.amazonaws.com/123/audit" {
		t.Errorf("unexpected queue url %q", *in.QueueUrl)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(*in.MessageBody), &decoded); err != nil {
		t.Fatalf("message body is not JSON: %v", err)
	}
	if decoded["eventId"] != "evt-9" || decoded["userId"] != "user-9" {
		t.Errorf("unexpected body %v", decoded)
	}
	if v := in.MessageAttributes["view"].StringValue; v == nil || *v != "own_record" {
		t.Errorf("expected view attribute own_record, got %v", v)
	}
}

func TestSQSRecorder_WrapsSendError(t *testing.T) {
	sendErr := errors.New("throttled")
	r := NewSQSRecorder(&fakeSQS{err: sendErr}, "q")

	err := r.RecordAccess(context.Background(), AuditEntry{EventID: "evt-10"})
	if !errors.Is(err, sendErr) {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}
