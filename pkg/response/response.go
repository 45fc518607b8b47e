package response

import (
	"articlehub/pkg/logger"
	"encoding/json"
	"net/http"
)

// Code is the application status carried by every response.
type Code string

const (
	CodeOK               Code = "OK"
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeLogin            Code = "LOGIN"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeTooManyRequests  Code = "TOO_MANY_REQUESTS"
	CodeServer           Code = "SERVER"
)

var statusOf = map[Code]int{
	CodeOK:               http.StatusOK,
	CodeBadRequest:       http.StatusBadRequest,
	CodeLogin:            http.StatusUnauthorized,
	CodeUnauthorized:     http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeTooManyRequests:  http.StatusTooManyRequests,
	CodeServer:           http.StatusInternalServerError,
}

// Status returns the HTTP status of code.
func (c Code) Status() int {
	if s, ok := statusOf[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type Envelope struct {
	Code Code   `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func write(w http.ResponseWriter, code Code, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.Status())
	if err := json.NewEncoder(w).Encode(Envelope{Code: code, Msg: msg, Data: data}); err != nil {
		logger.Sugar.Errorf("Failed to write response: %v", err)
	}
}

// Success writes data with code OK.
func Success(w http.ResponseWriter, data any) {
	write(w, CodeOK, "success", data)
}

// SuccessMsg writes a bare OK with a message.
func SuccessMsg(w http.ResponseWriter, msg string) {
	write(w, CodeOK, msg, nil)
}

// Error writes a failure envelope with the status matching code.
func Error(w http.ResponseWriter, code Code, msg string) {
	write(w, code, msg, nil)
}
