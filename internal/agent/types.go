// Package agent implements the transports to the conversational backend.
package agent

import (
	"errors"
)

// ErrTransport marks any failed exchange: network failure, non-2xx status,
// backend error status or an undecodable reply.
var ErrTransport = errors.New("transport failure")

// Wire field names shared by the HTTP JSON bodies and the gRPC struct payloads.
const (
	FieldSessionID = "session_id"
	FieldQuery     = "query"
	FieldResponse  = "response"
)

// StartResponse is the body returned by POST /start.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// AskRequest is the body sent to POST /ask.
type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body the backend sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Transport names accepted by New.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)
