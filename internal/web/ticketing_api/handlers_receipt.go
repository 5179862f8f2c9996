package ticketing_api

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func (server *Server) loadReceipt(request *http.Request, id int64) (ReceiptDTO, error) {
	ctx := request.Context()
	booking, err := server.ownedBooking(ctx, func() (model.Booking, error) {
		return server.store.GetBooking(ctx, id)
	})
	if err != nil {
		return ReceiptDTO{}, err
	}

	dto := ReceiptDTO{Booking: booking}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		dto.Passenger, err = server.store.GetPassenger(groupCtx, booking.PassengerID)
		return err
	})
	group.Go(func() error {
		var err error
		dto.Stops, err = server.store.ListJourneys(groupCtx, store.JourneyFilter{ScheduleID: booking.ScheduleID}, store.Page{Limit: store.MaxPageSize})
		return err
	})
	group.Go(func() error {
		var err error
		if dto.Schedule, err = server.store.GetSchedule(groupCtx, booking.ScheduleID); err != nil {
			return err
		}
		dto.Train, err = server.store.GetTrain(groupCtx, dto.Schedule.TrainID)
		return err
	})
	if err := group.Wait(); err != nil {
		return ReceiptDTO{}, err
	}

	dto.Stations = map[int64]model.Station{}
	for _, stop := range dto.Stops {
		station, err := server.store.GetStation(ctx, stop.StationID)
		if err != nil {
			return ReceiptDTO{}, err
		}
		dto.Stations[station.ID] = station
	}
	dto.Coaches = map[int64]model.Coach{}
	for _, ticket := range booking.Tickets {
		if _, ok := dto.Coaches[ticket.CoachID]; ok {
			continue
		}
		coach, err := server.store.GetCoach(ctx, ticket.CoachID)
		if err != nil {
			return ReceiptDTO{}, err
		}
		dto.Coaches[coach.ID] = coach
	}
	return dto, nil
}

// handleReceipt renders a printable HTML receipt for a booking.
func (server *Server) handleReceipt(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	dto, err := server.loadReceipt(request, id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}

	server.renderHTML(writer, "receipt.html", BuildReceiptVM(dto))
}
