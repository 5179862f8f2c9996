package ticketing_api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

// ownedBooking loads a booking the caller may see. Bookings of other users
// are reported as missing rather than forbidden.
func (server *Server) ownedBooking(ctx context.Context, load func() (model.Booking, error)) (model.Booking, error) {
	booking, err := load()
	if err != nil {
		return model.Booking{}, err
	}
	if !authz.PrincipalFrom(ctx).Owns(booking.UserID) {
		return model.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func (server *Server) handleListBookings(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	passengerID, err := queryInt64(values, "passenger_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	scheduleID, err := queryInt64(values, "schedule_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}

	principal := authz.PrincipalFrom(request.Context())
	filter := store.BookingFilter{
		UserID:      principal.Scope(),
		PassengerID: passengerID,
		ScheduleID:  scheduleID,
		Status:      model.BookingStatus(values.Get("status")),
	}
	if principal.IsAdmin() {
		userID, err := queryInt64(values, "user_id")
		if err != nil {
			server.writeError(writer, request, err)
			return
		}
		if userID > 0 {
			filter.UserID = &userID
		}
	}

	bookings, err := server.store.ListBookings(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, bookings)
}

func (server *Server) handleCreateBooking(writer http.ResponseWriter, request *http.Request) {
	var input bookingInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	booking, err := server.store.CreateBooking(request.Context(), model.Booking{
		PassengerID: input.PassengerID,
		UserID:      input.UserID,
		ScheduleID:  input.ScheduleID,
		Status:      input.Status,
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, booking)
}

func (server *Server) handleGetBooking(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	booking, err := server.ownedBooking(request.Context(), func() (model.Booking, error) {
		return server.store.GetBooking(request.Context(), id)
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, booking)
}

func (server *Server) handleBookingByReference(writer http.ResponseWriter, request *http.Request) {
	reference := chi.URLParam(request, "reference")
	booking, err := server.ownedBooking(request.Context(), func() (model.Booking, error) {
		return server.store.GetBookingByReference(request.Context(), reference)
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, booking)
}

func (server *Server) handleUpdateBooking(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input bookingInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	if input.Status == "" {
		input.Status = model.BookingConfirmed
	}
	booking, err := server.store.UpdateBooking(request.Context(), model.Booking{
		ID:          id,
		PassengerID: input.PassengerID,
		ScheduleID:  input.ScheduleID,
		Status:      input.Status,
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, booking)
}

func (server *Server) handleDeleteBooking(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteBooking)
}

func (server *Server) handleCancelBooking(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.ownedBooking(request.Context(), func() (model.Booking, error) {
		return server.store.GetBooking(request.Context(), id)
	}); err != nil {
		server.writeError(writer, request, err)
		return
	}

	booking, err := server.store.CancelBooking(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.logger.Info("booking cancelled", "booking", booking.Reference, "user", authz.PrincipalFrom(request.Context()).UserID)
	server.writeJSON(writer, request, http.StatusOK, booking)
}

func (server *Server) handleListTickets(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	bookingID, err := queryInt64(values, "booking_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	scheduleID, err := queryInt64(values, "schedule_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}

	filter := store.TicketFilter{
		BookingID:  bookingID,
		ScheduleID: scheduleID,
		UserID:     authz.PrincipalFrom(request.Context()).Scope(),
		Status:     model.TicketStatus(values.Get("status")),
	}
	tickets, err := server.store.ListTickets(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, tickets)
}

func (server *Server) handleCreateTicket(writer http.ResponseWriter, request *http.Request) {
	var input ticketInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	ticket, err := server.store.CreateTicket(request.Context(), model.Ticket{
		BookingID:          input.BookingID,
		CoachID:            input.CoachID,
		SeatNumber:         input.SeatNumber,
		DepartureStationID: input.DepartureStationID,
		ArrivalStationID:   input.ArrivalStationID,
		Price:              input.Price,
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, ticket)
}

func (server *Server) handleGetTicket(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	ticket, err := server.store.GetTicket(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.ownedBooking(request.Context(), func() (model.Booking, error) {
		return server.store.GetBooking(request.Context(), ticket.BookingID)
	}); err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, ticket)
}

// handleUpdateTicket only changes the status; seats move by cancelling and
// issuing a new ticket.
func (server *Server) handleUpdateTicket(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input struct {
		Status model.TicketStatus `json:"status" validate:"required,oneof=active cancelled"`
	}
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	ticket, err := server.store.UpdateTicket(request.Context(), model.Ticket{ID: id, Status: input.Status})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, ticket)
}

func (server *Server) handleDeleteTicket(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteTicket)
}
