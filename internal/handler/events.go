package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/middleware"
	"github.com/famtrack/tracker-server-go/internal/repository"
	"github.com/famtrack/tracker-server-go/internal/sse"
)

// EventStream is the broker surface the handler needs. *sse.Broker
// implements it.
type EventStream interface {
	Subscribe(familyID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams family events (location updates, pairings) to a
// watching parent over SSE.
type EventsHandler struct {
	broker     EventStream
	familyRepo repository.FamilyRepository
}

func NewEventsHandler(broker EventStream, familyRepo repository.FamilyRepository) *EventsHandler {
	return &EventsHandler{
		broker:     broker,
		familyRepo: familyRepo,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	member, err := h.familyRepo.FindMembershipByUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if member == nil {
		writeError(w, apperrors.FamilyNotFound())
		return
	}

	family, err := h.familyRepo.FindByID(r.Context(), member.FamilyID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if family == nil {
		writeError(w, apperrors.FamilyNotFound())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(member.FamilyID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("familyId", member.FamilyID).
		Str("userId", actor.ID).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"familyId":   family.ID,
		"familyName": family.FamilyName,
	}); err != nil {
		log.Error().Err(err).Msg("failed to send connected event")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("familyId", member.FamilyID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("familyId", member.FamilyID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("familyId", member.FamilyID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
