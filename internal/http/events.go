package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/ws"
)

// EventsTopic is the hub topic review events are broadcast on.
const EventsTopic = "kyc"

const eventsReadLimit = 4 << 10

// EventPublisher renders submission events and broadcasts them on the hub.
type EventPublisher struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// NewEventPublisher constructs an EventPublisher.
func NewEventPublisher(hub *ws.Hub, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{hub: hub, logger: logger}
}

// Publish broadcasts event to every connected reviewer. It never waits on slow readers.
func (p *EventPublisher) Publish(ctx context.Context, event domain.SubmissionEvent) {
	if p == nil || p.hub == nil {
		return
	}
	payload, err := json.Marshal(eventResponse{
		Type:       string(event.Type),
		Submission: toSubmissionResponse(event.Submission),
		At:         event.At,
	})
	if err != nil {
		p.logger.Error("encode review event", "error", err)
		return
	}
	if !p.hub.Broadcast(EventsTopic, payload) {
		p.logger.Warn("review event dropped", "type", event.Type, "submission_id", event.Submission.ID)
	}
}

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for events websocket", "path", req.URL.Path)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if r.hub == nil {
		writeMessage(w, http.StatusNotFound, msgRouteNotFound)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(eventsReadLimit)
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(EventsTopic, client)
	r.logger.Info("review feed connected", "user_id", identity.UserID)
	go func() {
		defer func() {
			r.hub.Unregister(EventsTopic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
