// Package proxyhandler serves the external API of the Proxy Service.
package proxyhandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/threshold-xks/api"
	"github.com/ruteri/threshold-xks/interfaces"
)

// Handler serves /encrypt, /decrypt and /ping.
type Handler struct {
	kms interfaces.KMS
	log *slog.Logger
}

// NewHandler creates a new HTTP request handler.
func NewHandler(kms interfaces.KMS, log *slog.Logger) *Handler {
	return &Handler{
		kms: kms,
		log: log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/encrypt", h.HandleEncrypt)
	r.Post("/decrypt", h.HandleDecrypt)
	r.Get("/ping", h.HandlePing)
	r.Post("/ping", h.HandlePing)
}

type operation func(ctx context.Context, keyID interfaces.KeyID, data, aad []byte) ([]byte, error)

// HandleEncrypt seals data under the key for keyId.
//
// Request: {"keyId": "...", "data": "<base64>", "associatedData": "<base64>"}
// Response: {"data": "<base64 ciphertext>"}
func (h *Handler) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "encrypt", h.kms.Encrypt)
}

// HandleDecrypt opens a ciphertext produced by /encrypt.
//
// Request: {"keyId": "...", "data": "<base64 ciphertext>", "associatedData": "<base64>"}
// Response: {"data": "<base64 plaintext>"}
func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "decrypt", h.kms.Decrypt)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, name string, op operation) {
	var req interfaces.CryptoRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		h.log.Debug("Rejected malformed request", "operation", name, "err", err)
		api.WriteError(w, http.StatusBadRequest, err)
		return
	}

	out, err := op(r.Context(), req.KeyID, req.Data, req.AssociatedData)
	if err != nil {
		h.log.Warn("Operation failed",
			"operation", name,
			"key_id", req.KeyID.String(),
			"error_kind", interfaces.ErrorKind(err),
			"err", err)
		api.WriteError(w, api.StatusCode(err, http.StatusBadGateway), err)
		return
	}

	api.WriteJSON(w, http.StatusOK, interfaces.CryptoResponse{Data: out})
}

// HandlePing is the liveness endpoint used by the external caller to keep
// the service warm. It does not contact the remote participant.
func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
