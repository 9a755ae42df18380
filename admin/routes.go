package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the chi router mounted at /admin. token is the shared
// secret required of every write endpoint (freeze, stepDown, syncFrom);
// an empty token disables authentication entirely.
func NewRouter(h *Handlers, token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.HandleSummary)
	r.Get("/status", h.HandleStatus)
	r.Get("/isMaster", h.HandleIsMaster)
	r.Get("/replSetGetConfig", h.HandleGetConfig)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(token))
		r.Post("/freeze", h.HandleFreeze)
		r.Post("/stepDown", h.HandleStepDown)
		r.Post("/replSetSyncFrom", h.HandleSyncFrom)
	})

	log.Info().Msg("admin endpoints enabled at /admin/*")
	return r
}
