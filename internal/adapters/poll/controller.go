package poll

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/app"
	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

type Controller struct {
	Coord   *app.Coordinator
	Queue   core.SignalQueue
	Limiter *RateLimiter
}

// Join performs the same authenticate/authorize flow as the websocket
// binding; the welcome message is the HTTP response body instead of a
// pushed frame.
func (ctl *Controller) Join(c *gin.Context) {
	var req struct {
		Token   string `json:"token"`
		RepoURL string `json:"repoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, core.ErrorMessage{Type: core.TypeError, Message: core.MsgInvalidSignal})
		return
	}

	pid := domain.NewPeerID()
	conn := &queueConn{pid: pid, queue: ctl.Queue}
	res, perr := ctl.Coord.Join(c.Request.Context(), pid, conn, req.Token, req.RepoURL)
	if perr != nil {
		c.JSON(errStatus(perr), core.ErrorMessage{Type: core.TypeError, Message: perr.Message, Status: perr.Status})
		return
	}

	ctl.Queue.Touch(pid)
	res.Type = core.TypeConnected
	c.JSON(http.StatusOK, res)
	ctl.Coord.AnnounceJoin(pid)
}

// Poll drains queued signals for the peer and refreshes its liveness.
func (ctl *Controller) Poll(c *gin.Context) {
	var req struct {
		PeerID  string `json:"peerId"`
		RepoURL string `json:"repoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PeerID == "" {
		c.JSON(http.StatusBadRequest, core.ErrorMessage{Type: core.TypeError, Message: core.MsgInvalidSignal})
		return
	}

	pid := domain.PeerID(req.PeerID)
	snap, ok := ctl.Coord.Registry.Find(pid)
	if !ok {
		c.JSON(http.StatusNotFound, core.ErrorMessage{Type: core.TypeError, Message: core.MsgUnknownPeer})
		return
	}

	ctl.Queue.Touch(pid)
	signals := ctl.Queue.DrainFor(pid)
	if signals == nil {
		signals = []json.RawMessage{}
	}

	members := ctl.Coord.Registry.MembersOf(snap.Room, pid)
	peers := make([]domain.PeerInfo, 0, len(members))
	for _, m := range members {
		peers = append(peers, domain.PeerInfo{PeerID: m.ID, Handle: m.Handle})
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals, "peers": peers})
}

// Send stores a signal for later retrieval by the target. The target
// may be a websocket peer, in which case the frame is pushed
// immediately instead.
func (ctl *Controller) Send(c *gin.Context) {
	var req struct {
		From string          `json:"from"`
		To   string          `json:"to"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.From == "" {
		c.JSON(http.StatusBadRequest, core.ErrorMessage{Type: core.TypeError, Message: core.MsgInvalidSignal})
		return
	}
	if !core.IsRelay(req.Type) {
		c.JSON(http.StatusBadRequest, core.ErrorMessage{Type: core.TypeError, Message: core.MsgUnknownType})
		return
	}

	from := domain.PeerID(req.From)
	if _, ok := ctl.Coord.Registry.Find(from); !ok {
		c.JSON(http.StatusNotFound, core.ErrorMessage{Type: core.TypeError, Message: core.MsgUnknownPeer})
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(from) {
		c.JSON(http.StatusTooManyRequests, core.ErrorMessage{Type: core.TypeError, Message: core.MsgRateLimited})
		return
	}

	ctl.Queue.Touch(from)
	if perr := ctl.Coord.Relay(from, core.Signal{Type: req.Type, To: req.To, Data: req.Data}); perr != nil {
		c.JSON(http.StatusNotFound, core.ErrorMessage{Type: core.TypeError, Message: perr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Leave removes the peer and clears anything still queued for it.
// Idempotent: leaving twice reports success both times.
func (ctl *Controller) Leave(c *gin.Context) {
	var req struct {
		PeerID  string `json:"peerId"`
		RepoURL string `json:"repoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PeerID == "" {
		c.JSON(http.StatusBadRequest, core.ErrorMessage{Type: core.TypeError, Message: core.MsgInvalidSignal})
		return
	}

	pid := domain.PeerID(req.PeerID)
	if ctl.Coord.Leave(pid) {
		log.Info().Str("module", "adapters.poll").Str("peer", string(pid)).Msg("polling peer left")
	}
	ctl.Queue.ClearFor(pid)
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(pid)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func errStatus(perr *core.ProtoError) int {
	switch perr.Message {
	case core.MsgMissingFields:
		return http.StatusBadRequest
	case core.MsgInvalidToken:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}
