package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsEnvelope wraps every message pushed to the browser.
type wsEnvelope struct {
	Type string          `json:"type"` // "state" | "camera" | "closed"
	Data json.RawMessage `json:"data"`
}

// wsCommand is sent by the browser to report map interaction.
type wsCommand struct {
	Action string             `json:"action"` // "view" | "view_done" | "hover" | "dismiss_results"
	View   *domain.ViewState  `json:"view,omitempty"`
	Target domain.HoverTarget `json:"target,omitempty"`
}

// WebSocketUpgrade admits upgrades for an existing ?session=<id>.
func WebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id := c.Query("session")
		if id == "" {
			return errBadRequest(c, "session query parameter is required")
		}
		if _, err := deps.Sessions.Get(id); err != nil {
			return errFromDomain(c, err)
		}
		c.Locals("session_id", id)
		return c.Next()
	}
}

// WebSocketHandler relays a session's published state and camera commands
// to the browser and applies the interaction it reports back.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID, _ := c.Locals("session_id").(string)
		log := slog.Default().With("session", sessionID, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if deps.Feed != nil {
			stop, err := deps.Feed.Follow(ctx, sessionID, func(m ports.FeedMessage) {
				_ = writeJSON(wsEnvelope{Type: m.Kind, Data: json.RawMessage(m.Data)})
				if m.Kind == "closed" {
					cancel()
				}
			})
			if err != nil {
				log.Warn("ws follow failed", "error", err)
				_ = writeJSON(map[string]string{"error": "live updates unavailable"})
			} else {
				defer stop()
			}
		}

		// Without a feed the client still gets the current state once.
		if deps.Feed == nil {
			if s, err := deps.Sessions.Get(sessionID); err == nil {
				data, _ := json.Marshal(s.Snapshot())
				_ = writeJSON(wsEnvelope{Type: "state", Data: data})
			}
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					// Unblocks ReadMessage when the session is closed.
					_ = c.Close()
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd wsCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			s, err := deps.Sessions.Get(sessionID)
			if err != nil {
				_ = writeJSON(map[string]string{"error": "session closed"})
				break
			}

			switch cmd.Action {
			case "view", "view_done":
				if cmd.View == nil || cmd.View.Center.Validate() != nil {
					_ = writeJSON(map[string]string{"error": "valid view is required"})
					continue
				}
				if cmd.Action == "view" {
					if _, ok := s.MoveView(ctx, *cmd.View); !ok {
						_ = writeJSON(map[string]string{"status": "ignored", "reason": "transition in progress"})
					}
				} else {
					s.CompleteTransition(ctx, *cmd.View)
				}
			case "hover":
				if _, err := s.SetHover(ctx, cmd.Target); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}
			case "dismiss_results":
				s.DismissResults(ctx)
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + cmd.Action})
			}
		}

		log.Info("ws client disconnected")
	}
}
