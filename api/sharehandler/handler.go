// Package sharehandler serves the internal /partial endpoint of the Share
// Service and provides the mTLS client the Proxy Service uses to reach it.
package sharehandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/threshold-xks/api"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/interfaces"
)

// Handler serves POST /partial. Requests must arrive on a connection with a
// verified client certificate.
type Handler struct {
	partials interfaces.PartialProvider
	log      *slog.Logger
}

func NewHandler(partials interfaces.PartialProvider, log *slog.Logger) *Handler {
	return &Handler{
		partials: partials,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/partial", h.HandlePartial)
}

// HandlePartial computes the participant's partial result.
//
// Request: {"keyId": "...", "virtualPoint": "<base64>", "requestId": "..."}
// Response: {"partialResult": "<base64>"}
func (h *Handler) HandlePartial(w http.ResponseWriter, r *http.Request) {
	peer, ok := cryptoutils.PeerCommonName(r)
	if !ok {
		h.log.Warn("Rejected request without verified client certificate",
			"event", "security",
			"remote_addr", r.RemoteAddr)
		api.WriteError(w, http.StatusUnauthorized, interfaces.ErrUnauthorized)
		return
	}

	var req interfaces.PartialRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		h.log.Warn("Rejected malformed partial request", "peer", peer, "err", err)
		api.WriteError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.partials.ComputePartial(r.Context(), req)
	if err != nil {
		h.log.Debug("Partial computation failed",
			"peer", peer,
			"error_kind", interfaces.ErrorKind(err),
			"err", err)
		api.WriteError(w, api.StatusCode(err, http.StatusUnauthorized), err)
		return
	}

	api.WriteJSON(w, http.StatusOK, resp)
}
