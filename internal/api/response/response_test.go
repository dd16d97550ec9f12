package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, error)
		status int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"not found", NotFound, http.StatusNotFound},
		{"too many requests", TooManyRequests, http.StatusTooManyRequests},
		{"unsupported media type", UnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"internal", InternalError, http.StatusInternalServerError},
		{"unavailable", ServiceUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, errors.New("boom"))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.status || body.Message != "boom" || body.Error != http.StatusText(tt.status) {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestPaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []int{1, 2}, 2, 2, 5)

	var body PaginatedResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalPages != 3 || body.Page != 2 || body.TotalCount != 5 {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	Paginated(rec, []int{}, 1, 10, 0)
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalPages != 1 {
		t.Errorf("empty result should report one page, got %d", body.TotalPages)
	}
}

func TestAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		failure *analysis.Failure
		ok      bool
	}{
		{"clean", nil, true},
		{"partial", &analysis.Failure{Kind: analysis.FailurePartial, Subject: "9X", Message: "unknown tile"}, true},
		{"input", &analysis.Failure{Kind: analysis.FailureInputValidation, Message: "hand is empty"}, false},
		{"engine", &analysis.Failure{Kind: analysis.FailureEngine, Subject: "rank", Message: "panic"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Analysis(rec, map[string]int{"scans": 1}, "empty_hand", tt.failure)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, failures belong in the body", rec.Code)
			}
			var body struct {
				Data       map[string]int    `json:"data"`
				OK         bool              `json:"ok"`
				Diagnostic string            `json:"diagnostic"`
				Failure    *analysis.Failure `json:"failure"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.OK != tt.ok {
				t.Errorf("ok = %v, want %v", body.OK, tt.ok)
			}
			if body.Diagnostic != "empty_hand" || body.Data["scans"] != 1 {
				t.Errorf("body = %+v", body)
			}
			if (body.Failure == nil) != (tt.failure == nil) {
				t.Fatalf("failure = %v, want %v", body.Failure, tt.failure)
			}
			if tt.failure != nil && body.Failure.Kind != tt.failure.Kind {
				t.Errorf("kind = %s, want %s", body.Failure.Kind, tt.failure.Kind)
			}
		})
	}
}
