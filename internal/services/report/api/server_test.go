package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	"github.com/louisbranch/carbontrace/internal/services/report/app"
	"github.com/louisbranch/carbontrace/internal/services/report/storage/memory"
)

func newTestHandler(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := app.New(store, app.Options{
		Calendar: bucket.New(time.UTC, time.Monday),
		Now:      func() time.Time { return time.Date(2025, time.June, 18, 15, 0, 0, 0, time.UTC) },
	})
	return NewServer(svc).Handler(), store
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPostActivityAndGetReport(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"id":"act-1","category":"transport","subcategory":"car","co2Kg":5.5,"occurredAt":"2025-06-18T10:00:00Z"}`
	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/activities", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/users/u1/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var payload reportPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if payload.UserID != "u1" {
		t.Fatalf("userId = %s, want u1", payload.UserID)
	}
	if payload.Today.TotalCO2Kg != 5.5 {
		t.Fatalf("today total = %v, want 5.5", payload.Today.TotalCO2Kg)
	}
	if payload.Today.PerCategoryKg["transport"] != 5.5 {
		t.Fatalf("transport total = %v, want 5.5", payload.Today.PerCategoryKg["transport"])
	}
	if len(payload.Achievements) == 0 {
		t.Fatal("report should include achievement views")
	}
	if payload.WeekTrend.PercentChange != nil {
		t.Fatal("no previous week data, percentChange must be omitted")
	}
}

func TestPostActivityValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"id":"act-1","category":"transport","co2Kg":-2,"occurredAt":"2025-06-18T10:00:00Z"}`
	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/activities", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	var errBody map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["code"] != "ACTIVITY_NEGATIVE_CO2" {
		t.Fatalf("code = %s, want ACTIVITY_NEGATIVE_CO2", errBody["code"])
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/users/u1/activities", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed json", rec.Code)
	}
}

func TestListActivitiesWindow(t *testing.T) {
	handler, _ := newTestHandler(t)

	post := `{"id":"act-1","category":"food","co2Kg":2,"occurredAt":"2025-06-18T10:00:00Z"}`
	if rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/activities", post); rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d", rec.Code)
	}

	rec := doRequest(t, handler, http.MethodGet,
		"/api/users/u1/activities?from=2025-06-18T00:00:00Z&to=2025-06-19T00:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var listBody struct {
		Activities []activityPayload `json:"activities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Activities) != 1 {
		t.Fatalf("got %d activities, want 1", len(listBody.Activities))
	}

	rec = doRequest(t, handler, http.MethodGet,
		"/api/users/u1/activities?from=2025-06-19T00:00:00Z&to=2025-06-18T00:00:00Z", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet,
		"/api/users/u1/activities?from=yesterday&to=2025-06-19T00:00:00Z", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timestamp status = %d, want 400", rec.Code)
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/goals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get defaults status = %d, want 200", rec.Code)
	}
	var defaults goalTargetsPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &defaults); err != nil {
		t.Fatalf("decode defaults: %v", err)
	}
	if defaults.DailyKg <= 0 {
		t.Fatalf("default daily target = %v, want positive", defaults.DailyKg)
	}

	put := `{"dailyKg":4,"weeklyKg":28,"monthlyKg":120,"yearlyKg":1500}`
	rec = doRequest(t, handler, http.MethodPut, "/api/users/u1/goals", put)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/users/u1/goals", "")
	var saved goalTargetsPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.DailyKg != 4 || saved.YearlyKg != 1500 {
		t.Fatalf("saved targets = %+v", saved)
	}

	bad := `{"dailyKg":0,"weeklyKg":28,"monthlyKg":120,"yearlyKg":1500}`
	rec = doRequest(t, handler, http.MethodPut, "/api/users/u1/goals", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid target status = %d, want 400", rec.Code)
	}
}

func TestAchievementsEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	post := `{"id":"act-1","category":"waste","co2Kg":0.5,"occurredAt":"2025-06-18T10:00:00Z"}`
	if rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/activities", post); rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d", rec.Code)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/achievements", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Achievements []achievementPayload `json:"achievements"`
		TotalPoints  int                  `json:"totalPoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Achievements) == 0 {
		t.Fatal("expected achievement views")
	}
	if !body.Achievements[0].IsUnlocked {
		t.Fatal("unlocked achievements should sort first")
	}
	if body.TotalPoints == 0 {
		t.Fatal("first activity should award points")
	}
}
