// Package jsonrpc implements the JSON-RPC 1.1 envelope used by platform services:
// params and results are single-element lists wrapping a named-parameter object.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version sent and accepted.
const Version = "1.1"

// Error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAuthError      = -32400
	CodeServerError    = -32500
)

// Request is a JSON-RPC call.
type Request struct {
	Version string            `json:"version"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      string            `json:"id,omitempty"`
}

// Response is a JSON-RPC reply. Exactly one of Result and Error is set.
type Response struct {
	Version string          `json:"version"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error object of a failed call.
type Error struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Trace   string `json:"error,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Name, e.Code, e.Message)
}

// NewError builds an Error with the platform's error name.
func NewError(code int, message string) *Error {
	return &Error{Name: "JSONRPCError", Code: code, Message: message}
}

// FirstParam decodes the first positional parameter into dst.
func (r *Request) FirstParam(dst interface{}) error {
	if len(r.Params) == 0 {
		return fmt.Errorf("method %s requires one parameter object", r.Method)
	}
	if err := json.Unmarshal(r.Params[0], dst); err != nil {
		return fmt.Errorf("decode params of %s: %w", r.Method, err)
	}
	return nil
}
