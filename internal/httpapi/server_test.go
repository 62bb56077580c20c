package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hadir-sekolah/presensi/internal/httpapi"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/service"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

var schoolSettings = map[string]string{
	"school_latitude":       "-6.2",
	"school_longitude":      "106.8166",
	"allowed_radius_meters": "200",
	"entry_time":            "07:00",
	"entry_deadline":        "08:00",
	"exit_time":             "15:00",
	"timezone":              "Asia/Jakarta",
}

const adminToken = "rahasia"

type testEnv struct {
	srv *httptest.Server
	now time.Time
}

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, knownSubjects []string) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)} // 07:05 WIB

	settingsSvc := service.NewSettingsService(memory.NewSettingsStore(schoolSettings))
	attendanceSvc := service.NewAttendanceService(
		service.NewSubjectRegistry(memory.NewSubjectStore(knownSubjects)),
		settingsSvc,
		memory.NewAttendanceStore(),
		memory.NewSubmissionEventStore(),
		logsvc.Discard(),
	)
	attendanceSvc.SetClock(func() time.Time { return env.now })

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logsvc.Discard(),
		Addr:       ":0",
		Attendance: attendanceSvc,
		Settings:   settingsSvc,
		AdminToken: adminToken,
	})

	env.srv = httptest.NewServer(srv.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, subject, contentType string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if subject != "" {
		req.Header.Set(httpapi.HeaderSubjectID, subject)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) submit(t *testing.T, subject, body string) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, "/v1/attendance", subject, "application/json", []byte(body))
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

const atSchoolIn = `{"latitude":"-6.2","longitude":"106.8166","accuracy":"12","mode":"masuk"}`

// ── Submit ───────────────────────────────────────────────────────────────────

func TestSubmit_CheckIn_OK(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "siswa-1", atSchoolIn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body types.SubmitResponse
	decode(t, resp, &body)
	if !body.OK || body.Duplicate {
		t.Errorf("expected ok non-duplicate, got %+v", body)
	}
	if body.Mode != "masuk" || body.Date != "2026-03-02" {
		t.Errorf("unexpected mode/date %q/%q", body.Mode, body.Date)
	}
}

func TestSubmit_Duplicate_200(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	env.submit(t, "siswa-1", atSchoolIn)
	resp := env.submit(t, "siswa-1", atSchoolIn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body types.SubmitResponse
	decode(t, resp, &body)
	if !body.Duplicate {
		t.Error("expected duplicate=true")
	}
}

func TestSubmit_UnknownSubject_403(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "tamu", atSchoolIn)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSubmit_MissingSubject_401(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "", atSchoolIn)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSubmit_InvalidFields_400(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "siswa-1", `{"latitude":"","longitude":"106.8","accuracy":"x","mode":"masuk"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body types.ErrorResponse
	decode(t, resp, &body)
	if body.Code != "invalid_request" {
		t.Errorf("expected code=invalid_request, got %q", body.Code)
	}
	if body.Errors["latitude"] == "" || body.Errors["accuracy"] == "" {
		t.Errorf("expected latitude and accuracy errors, got %v", body.Errors)
	}
}

func TestSubmit_InvalidJSON_400(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "siswa-1", `not json at all`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmit_OutsideGeofence_422(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	resp := env.submit(t, "siswa-1", `{"latitude":"-6.21","longitude":"106.8166","accuracy":"12","mode":"masuk"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var body types.ErrorResponse
	decode(t, resp, &body)
	if body.Code != "outside_geofence" {
		t.Errorf("expected code=outside_geofence, got %q", body.Code)
	}
	if !strings.Contains(body.Message, "m from school") {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestSubmit_TooLate_422(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})
	env.now = time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC) // 08:30 WIB

	resp := env.submit(t, "siswa-1", atSchoolIn)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var body types.ErrorResponse
	decode(t, resp, &body)
	if body.Code != "outside_window" {
		t.Errorf("expected code=outside_window, got %q", body.Code)
	}
}

func TestSubmit_CheckOutWithoutCheckIn_409(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})
	env.now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // 15:00 WIB

	resp := env.submit(t, "siswa-1", `{"latitude":"-6.2","longitude":"106.8166","accuracy":"12","mode":"pulang"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSubmit_Protobuf(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})

	st, err := structpb.NewStruct(map[string]any{
		"latitude":  -6.2,
		"longitude": "106.8166",
		"accuracy":  12.0,
		"mode":      "masuk",
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	payload, err := proto.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp := env.do(t, http.MethodPost, "/v1/attendance", "siswa-1", httpapi.ContentTypeProtobuf, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != httpapi.ContentTypeProtobuf {
		t.Errorf("expected protobuf response, got %q", ct)
	}

	raw, _ := io.ReadAll(resp.Body)
	out := &structpb.Struct{}
	if err := proto.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := out.GetFields()
	if !fields["ok"].GetBoolValue() {
		t.Error("expected ok=true")
	}
	if fields["mode"].GetStringValue() != "masuk" {
		t.Errorf("expected mode=masuk, got %v", fields["mode"])
	}
}

// ── Today ────────────────────────────────────────────────────────────────────

func TestToday_AfterCheckIn(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})
	env.submit(t, "siswa-1", atSchoolIn)

	resp := env.do(t, http.MethodGet, "/v1/attendance/today", "siswa-1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	decode(t, resp, &body)
	if body["jam_masuk"] != "2026-03-02T07:05:00+07:00" {
		t.Errorf("unexpected jam_masuk %v", body["jam_masuk"])
	}
	if v, ok := body["jam_pulang"]; !ok || v != nil {
		t.Errorf("expected jam_pulang=null, got %v (present=%v)", v, ok)
	}
}

// ── Settings ─────────────────────────────────────────────────────────────────

func TestSettings_Get(t *testing.T) {
	env := newTestServer(t, nil)

	resp := env.do(t, http.MethodGet, "/v1/settings", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var kv map[string]string
	decode(t, resp, &kv)
	if kv["entry_time"] != "07:00" {
		t.Errorf("expected entry_time=07:00, got %v", kv)
	}
}

func TestSettings_Put_RequiresToken(t *testing.T) {
	env := newTestServer(t, nil)

	resp := env.do(t, http.MethodPut, "/v1/settings", "", "application/json", []byte(`{"entry_time":"06:30"}`))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSettings_Put(t *testing.T) {
	env := newTestServer(t, nil)

	put := func(body string) *http.Response {
		req, _ := http.NewRequest(http.MethodPut, env.srv.URL+"/v1/settings", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := put(`{"entry_time":"06:30"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var kv map[string]string
	decode(t, resp, &kv)
	if kv["entry_time"] != "06:30" || kv["exit_time"] != "15:00" {
		t.Errorf("unexpected settings %v", kv)
	}

	resp = put(`{"exit_time":"soon"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body types.ErrorResponse
	decode(t, resp, &body)
	if body.Errors["exit_time"] == "" {
		t.Errorf("expected exit_time error, got %v", body.Errors)
	}
}

// ── Health and metrics ───────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	env := newTestServer(t, nil)

	resp := env.do(t, http.MethodGet, "/healthz", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetrics_CountsSubmissions(t *testing.T) {
	env := newTestServer(t, []string{"siswa-1"})
	env.submit(t, "siswa-1", atSchoolIn)
	env.submit(t, "tamu", atSchoolIn)

	resp := env.do(t, http.MethodGet, "/metrics", "", "", nil)
	raw, _ := io.ReadAll(resp.Body)
	text := string(raw)

	for _, want := range []string{
		`presensi_submissions_total{outcome="accepted"} 1`,
		`presensi_submissions_total{outcome="unknown_subject"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
