package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"fitlog/internal/routines"
)

func TestCreateRoutineConflict(t *testing.T) {
	db := newTestDB(t)
	h := NewRoutineHandler(routines.NewService(db, nil), nil)

	do := func() *httptest.ResponseRecorder {
		body := strings.NewReader(`{"routine_name":"Push Day"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/routines", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		c := newAuthedContext(t, w, req, 1)
		h.Create(c)
		return w
	}

	if w := do(); w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	if w := do(); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestRoutineHandlerRejectsBadID(t *testing.T) {
	db := newTestDB(t)
	h := NewRoutineHandler(routines.NewService(db, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/routines/abc/today", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	h.Today(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSaveDayUnknownRoutineIs404(t *testing.T) {
	db := newTestDB(t)
	h := NewRoutineHandler(routines.NewService(db, nil), nil)

	body := strings.NewReader(`{"workouts":[]}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/routines/42/days/2025-03-10", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: "42"}, {Key: "date", Value: "2025-03-10"}}

	h.SaveDay(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSaveDayMalformedDateIs400(t *testing.T) {
	db := newTestDB(t)
	svc := routines.NewService(db, nil)
	h := NewRoutineHandler(svc, nil)

	created, err := svc.Create(context.Background(), 1, "Push Day", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	body := strings.NewReader(`{"workouts":[]}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/routines/1/days/03-10-2025", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := newAuthedContext(t, w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(created.Routine.ID), 10)}, {Key: "date", Value: "03-10-2025"}}

	h.SaveDay(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}
