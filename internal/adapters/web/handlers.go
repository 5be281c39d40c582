package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"linen-ledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API (401 JSON if unauthenticated) ──────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)
		r.Get("/api/properties", h.apiListProperties)

		// Ledger
		r.Get("/api/properties/{propertyID}/balances", h.apiBalances)
		r.Get("/api/properties/{propertyID}/transactions", h.apiListTransactions)
		r.Get("/api/transactions/{id}", h.apiGetTransaction)
		r.Post("/api/transactions/{id}/void", h.apiVoidTransaction)

		// Movement flows
		r.Post("/api/properties/{propertyID}/movements/procure", h.apiProcure)
		r.Post("/api/properties/{propertyID}/movements/dispatch", h.apiDispatch)
		r.Post("/api/properties/{propertyID}/movements/receive", h.apiReceive)
		r.Post("/api/properties/{propertyID}/movements/rewash", h.apiRewash)
		r.Post("/api/properties/{propertyID}/movements/discard", h.apiDiscard)
		r.Post("/api/properties/{propertyID}/movements/adjust", h.apiAdjust)

		// Interpreter
		r.Post("/api/properties/{propertyID}/interpret", h.apiInterpretMovement)

		// Master data
		r.Get("/api/vendors", h.apiListVendors)
		r.Post("/api/vendors", h.apiCreateVendor)
		r.Get("/api/items", h.apiListItems)
		r.Post("/api/items", h.apiCreateItem)
		r.Get("/api/properties/{propertyID}/locations", h.apiListLocations)
		r.Post("/api/properties/{propertyID}/locations/{locationID}/deactivate", h.apiDeactivateLocation)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// propertyIDParam extracts and parses the {propertyID} URL parameter.
func propertyIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "propertyID"))
	return id, err == nil && id > 0
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the limit set by RequestBodyLimit; 400 for other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
