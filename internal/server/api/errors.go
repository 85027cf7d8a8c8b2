package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/galleryselect/internal/common"
)

// APIErrorDetail is a single entry of an error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
	// Excess is set for capacity errors: how many items must be removed.
	Excess int `json:"excess,omitempty"`
}

// APIErrorResponse is the body of every non-2xx response.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

type errorKind struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorKinds = []errorKind{
	{common.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{common.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
	{common.ErrDeadlineExpired, http.StatusForbidden, "deadline_expired"},
	{common.ErrEmptySelection, http.StatusUnprocessableEntity, "empty_selection"},
	{common.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{common.ErrPackageNotApproved, http.StatusConflict, "package_not_approved"},
	{common.ErrorNotFound, http.StatusNotFound, "not_found"},
	{common.ErrConflict, http.StatusConflict, "conflict"},
	{common.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{common.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// classify maps a service error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeErrorDetail(w, APIErrorDetail{Code: code, Status: strconv.Itoa(httpStatus), Detail: detail})
}

func writeErrorDetail(w http.ResponseWriter, d APIErrorDetail) {
	status, _ := strconv.Atoi(d.Status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIErrorResponse{Errors: []APIErrorDetail{d}})
}
