package ticketing_api

import (
	"context"
	"net/http"
	"strings"

	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func (server *Server) handleListStations(writer http.ResponseWriter, request *http.Request) {
	page, err := ParsePage(request.URL.Query())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.StationFilter{Query: strings.TrimSpace(request.URL.Query().Get("q"))}
	stations, err := server.store.ListStations(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, stations)
}

func (server *Server) handleCreateStation(writer http.ResponseWriter, request *http.Request) {
	var input stationInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	station, err := server.store.CreateStation(request.Context(), input.station(0))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, station)
}

func (server *Server) handleGetStation(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	station, err := server.store.GetStation(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, station)
}

func (server *Server) handleUpdateStation(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input stationInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	station, err := server.store.UpdateStation(request.Context(), input.station(id))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, station)
}

func (server *Server) handleDeleteStation(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteStation)
}

func (server *Server) handleListTrains(writer http.ResponseWriter, request *http.Request) {
	page, err := ParsePage(request.URL.Query())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.TrainFilter{Query: strings.TrimSpace(request.URL.Query().Get("q"))}
	trains, err := server.store.ListTrains(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, trains)
}

func (server *Server) handleCreateTrain(writer http.ResponseWriter, request *http.Request) {
	var input trainInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	train, err := server.store.CreateTrain(request.Context(), input.train(0))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, train)
}

func (server *Server) handleGetTrain(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	train, err := server.store.GetTrain(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, train)
}

func (server *Server) handleUpdateTrain(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input trainInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	train, err := server.store.UpdateTrain(request.Context(), input.train(id))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, train)
}

func (server *Server) handleDeleteTrain(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteTrain)
}

func (server *Server) handleTrainCoaches(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.store.GetTrain(request.Context(), id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	coaches, err := server.store.ListCoaches(request.Context(), store.CoachFilter{TrainID: id}, store.Page{Limit: store.MaxPageSize})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, coaches)
}

func (server *Server) handleListCoaches(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	trainID, err := queryInt64(values, "train_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.CoachFilter{TrainID: trainID, Type: model.CoachType(values.Get("type"))}
	coaches, err := server.store.ListCoaches(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, coaches)
}

func (server *Server) handleCreateCoach(writer http.ResponseWriter, request *http.Request) {
	var input coachInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	coach, err := server.store.CreateCoach(request.Context(), input.coach(0))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, coach)
}

func (server *Server) handleGetCoach(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	coach, err := server.store.GetCoach(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, coach)
}

func (server *Server) handleUpdateCoach(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input coachInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	coach, err := server.store.UpdateCoach(request.Context(), input.coach(id))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, coach)
}

func (server *Server) handleDeleteCoach(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteCoach)
}

type scheduleResponse struct {
	model.Schedule
	Stops []model.Journey `json:"stops,omitempty"`
}

func (server *Server) handleListSchedules(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	trainID, err := queryInt64(values, "train_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.ScheduleFilter{
		TrainID:        trainID,
		Status:         model.ScheduleStatus(values.Get("status")),
		ExternalTripID: values.Get("external_trip_id"),
	}
	if raw := values.Get("date"); raw != "" {
		date, err := ParseDate(raw)
		if err != nil {
			server.writeError(writer, request, err)
			return
		}
		filter.Date = &date
	}

	schedules, err := server.store.ListSchedules(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, schedules)
}

func (server *Server) handleCreateSchedule(writer http.ResponseWriter, request *http.Request) {
	var input scheduleInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	schedule, stops, err := server.store.CreateSchedule(request.Context(), input.schedule(0), input.stops())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, scheduleResponse{Schedule: schedule, Stops: stops})
}

func (server *Server) handleGetSchedule(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	schedule, err := server.store.GetSchedule(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, schedule)
}

func (server *Server) handleUpdateSchedule(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input scheduleInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	if len(input.Stops) > 0 {
		server.writeError(writer, request, badRequest("stops are edited through /api/journeys"))
		return
	}
	schedule, err := server.store.UpdateSchedule(request.Context(), input.schedule(id))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, schedule)
}

func (server *Server) handleDeleteSchedule(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteSchedule)
}

func (server *Server) handleScheduleJourneys(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.store.GetSchedule(request.Context(), id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	journeys, err := server.store.ListJourneys(request.Context(), store.JourneyFilter{ScheduleID: id}, store.Page{Limit: store.MaxPageSize})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, journeys)
}

func (server *Server) handleSeatMap(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	values := request.URL.Query()
	from, err := queryInt64(values, "from")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	to, err := queryInt64(values, "to")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	seatMap, err := server.store.SeatMap(request.Context(), id, from, to)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, seatMap)
}

func (server *Server) handleListJourneys(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	scheduleID, err := queryInt64(values, "schedule_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	stationID, err := queryInt64(values, "station_id")
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	journeys, err := server.store.ListJourneys(request.Context(), store.JourneyFilter{ScheduleID: scheduleID, StationID: stationID}, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, journeys)
}

func (server *Server) handleCreateJourney(writer http.ResponseWriter, request *http.Request) {
	var input journeyInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	journey, err := server.store.CreateJourney(request.Context(), input.journey(0, input.ScheduleID))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, journey)
}

func (server *Server) handleGetJourney(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	journey, err := server.store.GetJourney(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, journey)
}

func (server *Server) handleUpdateJourney(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input journeyInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	journey, err := server.store.UpdateJourney(request.Context(), input.journey(id, input.ScheduleID))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, journey)
}

func (server *Server) handleDeleteJourney(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeleteJourney)
}

func (server *Server) handleSearchTrains(writer http.ResponseWriter, request *http.Request) {
	query, err := ParseSearchQuery(request.URL.Query(), server.now())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	results, err := server.store.SearchTrains(request.Context(), query.From, query.To, query.Date)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, results)
}

func (server *Server) handleDashboard(writer http.ResponseWriter, request *http.Request) {
	dashboard, err := server.store.Dashboard(request.Context(), server.now())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, dashboard)
}

func (server *Server) deleteByID(writer http.ResponseWriter, request *http.Request, remove func(ctx context.Context, id int64) error) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if err := remove(request.Context(), id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}
