package web

import (
	"net/http"
	"strconv"

	"linen-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiListProperties handles GET /api/properties — only properties the caller
// has a grant for are returned.
func (h *Handler) apiListProperties(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	properties, err := h.svc.ListProperties(r.Context(), claims.UserID)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, properties)
}

// apiListVendors handles GET /api/vendors.
func (h *Handler) apiListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.ListVendors(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, vendors)
}

// apiCreateVendor handles POST /api/vendors. PropertyIDs lists the properties
// to provision a holding-area location at.
func (h *Handler) apiCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Phone       *string `json:"phone,omitempty"`
		PropertyIDs []int   `json:"property_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	vendor, err := h.svc.CreateVendor(r.Context(), core.VendorInput{Name: req.Name, Phone: req.Phone}, req.PropertyIDs)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, vendor)
}

// apiListItems handles GET /api/items.
func (h *Handler) apiListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, items)
}

// apiCreateItem handles POST /api/items.
func (h *Handler) apiCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		SKU  string `json:"sku"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.svc.CreateItem(r.Context(), req.Name, req.SKU)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, item)
}

// apiListLocations handles GET /api/properties/{propertyID}/locations.
func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	locations, err := h.svc.ListLocations(r.Context(), claims.UserID, propertyID)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, locations)
}

// apiDeactivateLocation handles
// POST /api/properties/{propertyID}/locations/{locationID}/deactivate.
func (h *Handler) apiDeactivateLocation(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	locationID, err := strconv.Atoi(chi.URLParam(r, "locationID"))
	if err != nil {
		writeError(w, r, "invalid location id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeactivateLocation(r.Context(), claims.UserID, propertyID, locationID); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
