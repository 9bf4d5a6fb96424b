package util

import "fmt"

// ResponseError is the uniform error envelope written to clients.
type ResponseError struct {
	Status int    `json:"status"`
	Msg    string `json:"reason"`
}

func (e ResponseError) Error() string { return e.Msg }

func NewResponseError(status int, format string, args ...interface{}) error {
	return ResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}
