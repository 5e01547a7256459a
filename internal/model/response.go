package model

import (
	"sensorhub/internal/apperr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope of every API response.
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Code    apperr.Code       `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(message string, data any) Response {
	return Response{Status: StatusSuccess, Message: message, Data: data}
}

// NewErrorResponse builds an error envelope from err. Internal causes are not
// exposed to the caller.
func NewErrorResponse(err error) Response {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Wrap(err, "internal error")
	}
	msg := e.Message
	if e.Resource != "" {
		msg = e.Message + " (" + e.Resource + ")"
	}
	return Response{
		Status:  StatusError,
		Code:    e.Code,
		Message: msg,
		Errors:  map[string]string{e.Key(): msg},
		Fields:  e.Fields,
	}
}
