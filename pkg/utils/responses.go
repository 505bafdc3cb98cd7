package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Response is the envelope of every JSON body. Code is set on rejections
// so clients can branch without parsing Message.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// ResponseJSON writes JSON response with custom status code
func ResponseJSON(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, Response{Status: true, Message: message, Data: data})
}

func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, Response{Status: true, Message: message, Data: data})
}

// ResponseError writes a failed envelope. code is the stable error kind.
func ResponseError(w http.ResponseWriter, status int, code, message string, errors any) {
	ResponseJSON(w, status, Response{Message: message, Code: code, Errors: errors})
}

func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	ResponseError(w, http.StatusBadRequest, "validation_error", message, errors)
}

func ResponseUnauthorized(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

func ResponseForbidden(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusForbidden, "forbidden", message, nil)
}

func ResponseNotFound(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusNotFound, "not_found", message, nil)
}

func ResponseInternalError(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// ResponseConflict reports a business rejection of the current state.
func ResponseConflict(w http.ResponseWriter, code, message string) {
	ResponseError(w, http.StatusConflict, code, message, nil)
}

// ResponseServiceUnavailable adds a Retry-After hint in seconds.
func ResponseServiceUnavailable(w http.ResponseWriter, message string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	ResponseError(w, http.StatusServiceUnavailable, "transient", message, nil)
}
