package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fitlog/internal/dashboard"
	"fitlog/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAuthedContext(t *testing.T, w *httptest.ResponseRecorder, req *http.Request, userID uint) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("userID", userID)
	return c
}

func TestActivitiesRejectsMissingDates(t *testing.T) {
	db := newTestDB(t)
	h := NewDashboardHandler(dashboard.NewService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/activities", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)

	h.Activities(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestActivitiesRejectsMalformedDates(t *testing.T) {
	db := newTestDB(t)
	h := NewDashboardHandler(dashboard.NewService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/activities?startDate=03-01-2025&endDate=2025-03-05", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)

	h.Activities(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestActivitiesReturnsPlaceholderRows(t *testing.T) {
	db := newTestDB(t)
	h := NewDashboardHandler(dashboard.NewService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/activities?startDate=2025-03-01&endDate=2025-03-02", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)

	h.Activities(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if rows[0]["date"] != "2025-03-01" || rows[0]["activity"] != float64(0) {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if _, ok := rows[0]["achievement"]; !ok {
		t.Fatal("achievement field must be present (null) on placeholder rows")
	}
	if rows[0]["achievement"] != nil {
		t.Fatalf("placeholder achievement must be null, got %v", rows[0]["achievement"])
	}
}

func TestAchievementsEmpty(t *testing.T) {
	db := newTestDB(t)
	h := NewDashboardHandler(dashboard.NewService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/achievements", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)

	h.Achievements(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != "[]" {
		t.Fatalf("expected empty array got %s", body)
	}
}
