package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/gemini"
	"github.com/zjx20/gemini-relay/metrics"
	"github.com/zjx20/gemini-relay/relay"
)

const (
	livenessText = "Gemini relay is running"
	apiGreeting  = "Hello from the Gemini relay API"
)

type Handler struct {
	relay   *relay.Relay
	metrics *metrics.Collector
}

func NewHandler(r *relay.Relay, collector *metrics.Collector) *Handler {
	return &Handler{relay: r, metrics: collector}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, livenessText)
}

func (h *Handler) API(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"message": apiGreeting})
}

func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	raw, err := h.relay.Models(r.Context())
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, &ErrResp{Error: "Failed to fetch models", Details: details(err)})
		return
	}
	render.JSON(w, r, raw)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req := &ChatReq{}
	if err := render.Bind(r, req); err != nil {
		log.Debugf("bad request: %s", err)
		msg := "Invalid request body"
		if errors.Is(err, relay.ErrEmptyMessage) {
			msg = "Message is required"
		}
		h.metrics.RecordChat(metrics.StatusBadRequest)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrResp{Error: msg})
		return
	}

	result, err := h.relay.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, &ErrResp{Error: "Something went wrong!", Details: details(err)})
		return
	}
	if result.ConversationID != "" {
		w.Header().Set(ConversationIDHeader, result.ConversationID)
	}
	render.JSON(w, r, &ChatResp{Reply: result.Reply, ConversationID: result.ConversationID})
}

// details describes an upstream failure to the caller: the upstream error
// object when there is one, the error message otherwise.
func details(err error) any {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != nil {
		return apiErr.Detail
	}
	return err.Error()
}
