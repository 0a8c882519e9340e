package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/domain"
)

// Time allowed to complete one write to the peer.
const writeWait = 10 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			// Flush whatever is already buffered (an error reply sent
			// just before teardown, typically) before giving up the
			// socket.
			for {
				select {
				case frame, ok := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if !ok {
						_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
						return
					}
					if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					return
				}
			}
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			// Heartbeat. A failed ping write means the connection is
			// dead; exiting closes the socket, which unblocks readPump
			// into the cleanup path.
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, pid domain.PeerID, c *Conn) {
	defer func() {
		cancel()
		ctl.Coord.Leave(pid)
		c.Close()
		log.Info().Str("module", "adapters.ws").Str("peer", string(pid)).Msg("readPump closing")
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	c.ws.SetReadLimit(ctl.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "adapters.ws").Str("peer", string(pid)).Msg("readPump read error")
				}
				return
			}
			if fatal := ctl.handleFrame(ctx, pid, c, data); fatal {
				return
			}
		}
	}
}
