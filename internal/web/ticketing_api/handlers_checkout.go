package ticketing_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// checkoutFailureReason labels a failed checkout for metrics.
func checkoutFailureReason(err error) string {
	var reqErr *requestError
	switch {
	case errors.Is(err, store.ErrSeatTaken):
		return "seat_taken"
	case errors.Is(err, store.ErrSoldOut):
		return "sold_out"
	case errors.Is(err, store.ErrNotBookable):
		return "not_bookable"
	case errors.Is(err, store.ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalid), errors.As(err, &reqErr):
		return "invalid"
	}
	return "error"
}

func (server *Server) idempotencyKey(request *http.Request, principal authz.Principal, input checkoutInput) (*store.IdempotencyKey, error) {
	key := strings.TrimSpace(request.Header.Get(idempotencyHeader))
	if key == "" {
		return nil, nil
	}
	if len(key) > maxIdempotencyKeyLen {
		return nil, badRequest("%s longer than %d characters", idempotencyHeader, maxIdempotencyKeyLen)
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	return &store.IdempotencyKey{
		Scope:       "user:" + strconv.FormatInt(principal.UserID, 10),
		Key:         key,
		Fingerprint: authz.Fingerprint(body),
	}, nil
}

// handleCheckout sells seats for the signed-in user. Retries carrying the
// same Idempotency-Key and body get the original booking back with 200.
func (server *Server) handleCheckout(writer http.ResponseWriter, request *http.Request) {
	principal := authz.PrincipalFrom(request.Context())

	var input checkoutInput
	if err := server.decode(writer, request, &input); err != nil {
		server.metrics.CheckoutFailures.WithLabelValues(checkoutFailureReason(err)).Inc()
		server.writeError(writer, request, err)
		return
	}
	key, err := server.idempotencyKey(request, principal, input)
	if err != nil {
		server.metrics.CheckoutFailures.WithLabelValues(checkoutFailureReason(err)).Inc()
		server.writeError(writer, request, err)
		return
	}

	checkout := input.request()
	checkout.UserID = &principal.UserID
	checkout.OwnPassengersOnly = !principal.IsAdmin()
	if checkout.Passenger != nil {
		checkout.Passenger.UserID = &principal.UserID
	}

	result, err := server.store.Checkout(request.Context(), checkout, key)
	if err != nil {
		reason := checkoutFailureReason(err)
		server.metrics.CheckoutFailures.WithLabelValues(reason).Inc()
		server.logger.Info("checkout rejected", "user", principal.UserID, "schedule", input.ScheduleID, "reason", reason, "error", err)
		server.writeError(writer, request, err)
		return
	}

	if result.Replayed {
		server.metrics.CheckoutReplaysTotal.Inc()
		server.writeJSON(writer, request, http.StatusOK, result.Booking)
		return
	}
	server.metrics.BookingsTotal.Inc()
	server.metrics.SeatsSoldTotal.Add(float64(len(result.Booking.Tickets)))
	server.logger.Info("booking created",
		"booking", result.Booking.Reference,
		"user", principal.UserID,
		"schedule", result.Booking.ScheduleID,
		"seats", len(result.Booking.Tickets),
		"total", result.Booking.TotalAmount.StringFixed(2),
	)
	server.writeJSON(writer, request, http.StatusCreated, result.Booking)
}
