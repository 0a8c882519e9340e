// Package ws is the persistent transport binding: one long-lived
// websocket per peer, server push both ways.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/app"
	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

type Controller struct {
	Coord      *app.Coordinator
	ReadLimit  int64
	PingPeriod time.Duration
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request and starts the pumps for one peer.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	pid := domain.NewPeerID()
	conn := newConn(ws)
	log.Info().Str("module", "adapters.ws").Str("peer", string(pid)).Msg("new connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, pid, conn)
}

// handleFrame processes one inbound message. Malformed input and
// unknown types get an error reply and keep the connection open; a
// failed join closes it. Returns true when the connection is done.
func (ctl *Controller) handleFrame(ctx context.Context, pid domain.PeerID, conn *Conn, data []byte) bool {
	var sig core.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		_ = conn.TrySend(core.NonFatal(core.MsgInvalidSignal).Frame())
		return false
	}

	switch sig.Type {
	case core.TypeJoin:
		return ctl.handleJoin(ctx, pid, conn, sig)
	case core.TypeLeave:
		ctl.Coord.Leave(pid)
		return false
	case core.TypeOffer, core.TypeAnswer, core.TypeICECandidate:
		if perr := ctl.Coord.Relay(pid, sig); perr != nil {
			_ = conn.TrySend(perr.Frame())
		}
		return false
	default:
		_ = conn.TrySend(core.NonFatal(core.MsgUnknownType).Frame())
		return false
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, pid domain.PeerID, conn *Conn, sig core.Signal) bool {
	res, perr := ctl.Coord.Join(ctx, pid, conn, sig.Token, sig.RepoURL)
	if perr != nil {
		_ = conn.TrySend(perr.Frame())
		if perr.Fatal {
			conn.Close()
			return true
		}
		return false
	}

	res.Type = core.TypeJoined
	ctl.sendJSON(conn, res)
	ctl.Coord.AnnounceJoin(pid)
	return false
}

func (ctl *Controller) sendJSON(conn *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("sendJSON marshal")
		return
	}
	_ = conn.TrySend(b)
}
