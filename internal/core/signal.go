package core

import "encoding/json"

// Signal type constants, client to server.
const (
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Server to client.
const (
	TypeError      = "error"
	TypeConnected  = "connected"
	TypeJoined     = "joined"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
)

// Signal is the wire envelope for every client-to-server message.
// Unmarshalling reads only these named fields; unknown keys in client
// JSON are ignored.
type Signal struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	RepoURL string          `json:"repoUrl,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsRelay reports whether the type is forwarded point-to-point.
func IsRelay(t string) bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeICECandidate
}
