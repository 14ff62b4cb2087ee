package webhook

import "github.com/go-chi/chi/v5"

/*──────────────────────────────────────────────────────────────────────────
  Routes

  Mounted under /api/webhooks. Signature verification replaces token
  auth here; the provider is the only caller.
──────────────────────────────────────────────────────────────────────────*/

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.HandleWebhook)
	return r
}
