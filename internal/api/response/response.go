// Package response writes the JSON envelopes the HTTP API returns.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
)

// ErrorResponse is returned for requests the API refused to analyze.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse wraps non-analysis payloads.
type SuccessResponse struct {
	Data any `json:"data"`
}

// AnalysisResponse wraps an analysis result and lifts its outcome to the top
// level so clients can branch without knowing the payload shape. A partial
// failure still counts as OK.
type AnalysisResponse struct {
	Data       any               `json:"data"`
	OK         bool              `json:"ok"`
	Diagnostic string            `json:"diagnostic,omitempty"`
	Failure    *analysis.Failure `json:"failure,omitempty"`
}

// PaginatedResponse is one page of pattern variations.
type PaginatedResponse struct {
	Data       any `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		// Headers are already sent; an encoding failure can only truncate the body.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success writes a 200 with data in the envelope.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// Analysis writes an analysis result. Engine failures are reported in the
// body, never through the status code.
func Analysis(w http.ResponseWriter, data any, diagnostic string, failure *analysis.Failure) {
	JSON(w, http.StatusOK, AnalysisResponse{
		Data:       data,
		OK:         failure == nil || failure.Kind == analysis.FailurePartial,
		Diagnostic: diagnostic,
		Failure:    failure,
	})
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	})
}

func BadRequest(w http.ResponseWriter, err error) {
	Error(w, http.StatusBadRequest, err)
}

func NotFound(w http.ResponseWriter, err error) {
	Error(w, http.StatusNotFound, err)
}

func InternalError(w http.ResponseWriter, err error) {
	Error(w, http.StatusInternalServerError, err)
}

// TooManyRequests is written by the per-client rate limiter.
func TooManyRequests(w http.ResponseWriter, err error) {
	Error(w, http.StatusTooManyRequests, err)
}

func UnsupportedMediaType(w http.ResponseWriter, err error) {
	Error(w, http.StatusUnsupportedMediaType, err)
}

// ServiceUnavailable is written when an analysis is cut short by its deadline.
func ServiceUnavailable(w http.ResponseWriter, err error) {
	Error(w, http.StatusServiceUnavailable, err)
}

// Paginated writes one page of results. An empty result is still one page.
func Paginated(w http.ResponseWriter, data any, page, pageSize, totalCount int) {
	totalPages := max((totalCount+pageSize-1)/pageSize, 1)
	JSON(w, http.StatusOK, PaginatedResponse{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	})
}
