package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/ledger"
	"github.com/safar/marketplace-orders/internal/payment"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// classify maps domain errors to a status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, database.ErrOrderNotFound), errors.Is(err, errNotVisible):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, database.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound, "payment_not_found"
	case errors.Is(err, ledger.ErrAlreadyPaid):
		return http.StatusConflict, "already_paid"
	case errors.Is(err, ledger.ErrNotPaid):
		return http.StatusConflict, "not_paid"
	case errors.Is(err, ledger.ErrAlreadyDelivered):
		return http.StatusConflict, "already_delivered"
	case errors.Is(err, ledger.ErrOrderNotCompleted):
		return http.StatusConflict, "order_not_completed"
	case errors.Is(err, payment.ErrPaymentMismatch):
		return http.StatusConflict, "payment_mismatch"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusBadGateway, "gateway_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			writeError(w, status, code, "")
			return
		}
	}

	resp := errorResponse{Error: code, Message: err.Error()}
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		resp.Message = ledger.ErrValidation.Error()
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}
