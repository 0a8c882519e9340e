package core

import "encoding/json"

// Protocol error messages. These exact strings are part of the wire
// contract with clients.
const (
	MsgInvalidSignal  = "Invalid signal message"
	MsgUnknownType    = "Unknown signal type"
	MsgMissingFields  = "Missing token or repoUrl"
	MsgInvalidToken   = "Invalid token"
	MsgNotApproved    = "Not approved for access"
	MsgNoRepoAccess   = "No access to repository"
	MsgTargetNotFound = "Target peer not found"
	MsgUnknownPeer    = "Unknown peer"
	MsgRateLimited    = "Too many signals"
)

// ProtoError is a protocol-level failure reported to the client.
// Fatal errors close the connection after the error reply; non-fatal
// ones leave it open.
type ProtoError struct {
	Message string
	Status  string // user's approval status, when relevant
	Fatal   bool
}

func (e *ProtoError) Error() string { return e.Message }

func NonFatal(msg string) *ProtoError { return &ProtoError{Message: msg} }

func Fatal(msg string) *ProtoError { return &ProtoError{Message: msg, Fatal: true} }

// ErrorMessage is the wire shape of an error reply.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Frame marshals the error into its wire form.
func (e *ProtoError) Frame() Frame {
	b, _ := json.Marshal(ErrorMessage{Type: TypeError, Message: e.Message, Status: e.Status})
	return b
}
