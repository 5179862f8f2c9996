package ticketing_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

func (server *Server) handleStationDepartures(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	query, err := ParseBoardQuery(request.URL.Query())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.store.GetStation(request.Context(), id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	departures, err := server.store.Departures(request.Context(), id, server.now(), query.Window, query.Limit)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, departures)
}

func (server *Server) loadBoard(request *http.Request) (model.Station, BoardTableVM, error) {
	query, err := ParseBoardQuery(request.URL.Query())
	if err != nil {
		return model.Station{}, BoardTableVM{}, err
	}
	station, err := server.store.GetStationByCode(request.Context(), chi.URLParam(request, "code"))
	if err != nil {
		return model.Station{}, BoardTableVM{}, err
	}
	now := server.now()
	departures, err := server.store.Departures(request.Context(), station.ID, now, query.Window, query.Limit)
	if err != nil {
		return model.Station{}, BoardTableVM{}, err
	}
	return station, BuildBoardTableVM(station, departures, now), nil
}

func (server *Server) handleBoardPage(writer http.ResponseWriter, request *http.Request) {
	station, table, err := server.loadBoard(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.renderHTML(writer, "board.html", BuildBoardPageVM(station, table, boardPollSeconds))
}

func (server *Server) handleBoardPartial(writer http.ResponseWriter, request *http.Request) {
	_, table, err := server.loadBoard(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.renderHTML(writer, "board_table.html", table)
}

func (server *Server) renderHTML(writer http.ResponseWriter, name string, viewmodel any) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := server.renderer.Render(writer, name, viewmodel); err != nil {
		server.logger.Error("render page", "template", name, "error", err)
		http.Error(writer, err.Error(), http.StatusInternalServerError)
	}
}
