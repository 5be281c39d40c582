package web

import (
	"net/http"
	"strconv"

	"linen-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiBalances handles GET /api/properties/{propertyID}/balances.
// Optional query filters: kind, condition, item_id, location_id.
func (h *Handler) apiBalances(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	filter := core.BalanceFilter{PropertyID: propertyID}
	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		kind := core.LocationKind(v)
		filter.LocationKind = &kind
	}
	if v := q.Get("condition"); v != "" {
		cond := core.Condition(v)
		filter.Condition = &cond
	}
	if v := q.Get("item_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "invalid item_id", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.LinenItemID = &id
	}
	if v := q.Get("location_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "invalid location_id", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.LocationID = &id
	}

	balances, err := h.svc.GetBalances(r.Context(), claims.UserID, filter)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, balances)
}

// apiListTransactions handles GET /api/properties/{propertyID}/transactions.
func (h *Handler) apiListTransactions(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transactions, err := h.svc.ListTransactions(r.Context(), claims.UserID, propertyID, limit)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, transactions)
}

// apiGetTransaction handles GET /api/transactions/{id}.
func (h *Handler) apiGetTransaction(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, "invalid transaction id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	t, err := h.svc.GetTransaction(r.Context(), claims.UserID, id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, t)
}

// apiVoidTransaction handles POST /api/transactions/{id}/void.
func (h *Handler) apiVoidTransaction(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, "invalid transaction id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.VoidTransaction(r.Context(), claims.UserID, id, req.Reason)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiProcure(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.ProcureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.Procure(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiDispatch(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.DispatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.DispatchToLaundry(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiReceive(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.ReceiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.ReceiveFromLaundry(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiRewash(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.RewashRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.ResendRewash(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiDiscard(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.DiscardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.DiscardLost(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiAdjust(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req core.AdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PropertyID = propertyID

	result, err := h.svc.Adjust(r.Context(), claims.UserID, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiInterpretMovement handles POST /api/properties/{propertyID}/interpret.
// The returned proposal requires explicit confirmation via a movement
// endpoint; nothing is posted here.
func (h *Handler) apiInterpretMovement(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	propertyID, ok := propertyIDParam(r)
	if !ok {
		writeError(w, r, "invalid property id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, r, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	resp, err := h.svc.InterpretMovement(r.Context(), claims.UserID, propertyID, req.Text)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, resp)
}
