package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/repository"
	"github.com/wedding-table/seating-server/internal/testutil"
)

func TestErrorHandler_Taxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: expired", auth.ErrUnauthenticated), http.StatusUnauthorized, "unauthenticated"},
		{fmt.Errorf("%w: dial tcp", auth.ErrServiceUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{repository.ErrNotRegistered, http.StatusNotFound, "not_registered"},
		{fmt.Errorf("event x: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("update event x: %w", repository.ErrForbidden), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("dup: %w", repository.ErrConflict), http.StatusConflict, "conflict"},
		{repository.ErrEmailRequired, http.StatusBadRequest, "invalid_request"},
		{badRequest("title is required"), http.StatusBadRequest, "invalid_request"},
		{echo.ErrNotFound, http.StatusNotFound, "not_found"},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method_not_allowed"},
		{errors.New("sql: connection refused at 10.0.0.3"), http.StatusInternalServerError, "internal"},
	}
	e := echo.New()
	h := ErrorHandler(nil)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			h(tt.err, c)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body %q: %v", rec.Body.String(), err)
			}
			if body.ErrorCode != tt.code || body.Message == "" {
				t.Errorf("body = %+v, want code %s", body, tt.code)
			}
			if strings.Contains(body.Message, "10.0.0.3") {
				t.Errorf("internal detail leaked: %q", body.Message)
			}
		})
	}
}

func TestErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.NoContent(http.StatusAccepted)
	ErrorHandler(nil)(repository.ErrForbidden, c)
	if rec.Code != http.StatusAccepted || rec.Body.Len() != 0 {
		t.Errorf("committed response rewritten: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()
	neg := -1.0
	shape := "hexagon"

	if err := v.Validate(&createEventRequest{Title: "Reception"}); err != nil {
		t.Errorf("valid event: %v", err)
	}
	tests := []struct {
		name string
		req  any
		want string
	}{
		{"missing title", &createEventRequest{}, "title is required"},
		{"blank title", &createEventRequest{Title: "   "}, "title must not be blank"},
		{"blank title patch", &updateEventRequest{Title: ptr(" \t ")}, "title must not be blank"},
		{"empty title patch", &updateEventRequest{Title: ptr("")}, "title must not be blank"},
		{"blank table title", &updateTableRequest{Title: ptr("  ")}, "title must not be blank"},
		{"blank full name", &updateUserRequest{FullName: ptr("\n ")}, "full_name must not be blank"},
		{"blank guest name", &createGuestRequest{FirstName: " ", LastName: "Hopper"}, "first_name must not be blank"},
		{"negative x", &createTableRequest{X: -1}, "x must be greater than or equal to 0"},
		{"negative width patch", &updateTableRequest{Width: &neg}, "width must be greater than or equal to 0"},
		{"bad shape", &updateTableRequest{Shape: &shape}, "shape must be one of: round, rectangle, square, oval"},
		{"bad email", &addCollaboratorRequest{Email: "nope"}, "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			var ir *invalidRequest
			if !errors.As(err, &ir) {
				t.Fatalf("err = %v, want invalidRequest", err)
			}
			if !strings.Contains(ir.msg, tt.want) {
				t.Errorf("message = %q, want it to contain %q", ir.msg, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestNullableUUID(t *testing.T) {
	var req updateSeatRequest
	if err := json.Unmarshal([]byte(`{"x": 2}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.GuestID.Set {
		t.Error("absent guest_id marked as set")
	}

	req = updateSeatRequest{}
	if err := json.Unmarshal([]byte(`{"guest_id": null}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.GuestID.Set || req.GuestID.Value.Valid {
		t.Errorf("null guest_id = %+v", req.GuestID)
	}

	req = updateSeatRequest{}
	if err := json.Unmarshal([]byte(`{"guest_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.GuestID.Set || !req.GuestID.Value.Valid || req.GuestID.Value.UUID.String() != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Errorf("guest_id = %+v", req.GuestID)
	}

	if err := json.Unmarshal([]byte(`{"guest_id": "not-a-uuid"}`), &req); err == nil {
		t.Error("expected error for malformed guest_id")
	}
}

func TestMonitoring(t *testing.T) {
	db := testutil.OpenTestDB(t)
	h := NewMonitoringHandler(db, nil)
	e := echo.New()

	serve := func(fn echo.HandlerFunc) (int, map[string]string) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := fn(c); err != nil {
			t.Fatal(err)
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec.Code, body
	}

	if code, body := serve(h.Ping); code != http.StatusOK || body["ping"] != "pong" {
		t.Errorf("ping = %d %v", code, body)
	}
	if code, body := serve(h.Healthz); code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("healthz = %d %v", code, body)
	}

	db.Close()
	code, body := serve(h.Healthz)
	if code != http.StatusServiceUnavailable || (body["status"] != "error" && body["status"] != "unhealthy") {
		t.Errorf("healthz with closed store = %d %v", code, body)
	}
}
