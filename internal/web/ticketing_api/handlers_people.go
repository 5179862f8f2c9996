package ticketing_api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func (server *Server) handleListPassengers(writer http.ResponseWriter, request *http.Request) {
	page, err := ParsePage(request.URL.Query())
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.PassengerFilter{
		UserID: authz.PrincipalFrom(request.Context()).Scope(),
		Query:  strings.TrimSpace(request.URL.Query().Get("q")),
	}
	passengers, err := server.store.ListPassengers(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, passengers)
}

func (server *Server) handleCreatePassenger(writer http.ResponseWriter, request *http.Request) {
	var input passengerInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	passenger := input.passenger(0)
	if principal := authz.PrincipalFrom(request.Context()); !principal.IsAdmin() {
		passenger.UserID = &principal.UserID
	}
	passenger, err := server.store.CreatePassenger(request.Context(), passenger)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, passenger)
}

// ownedPassenger hides passengers of other users behind ErrNotFound.
func (server *Server) ownedPassenger(request *http.Request, id int64) (model.Passenger, error) {
	passenger, err := server.store.GetPassenger(request.Context(), id)
	if err != nil {
		return model.Passenger{}, err
	}
	if !authz.PrincipalFrom(request.Context()).Owns(passenger.UserID) {
		return model.Passenger{}, store.ErrNotFound
	}
	return passenger, nil
}

func (server *Server) handleGetPassenger(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	passenger, err := server.ownedPassenger(request, id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, passenger)
}

func (server *Server) handleUpdatePassenger(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if _, err := server.ownedPassenger(request, id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input passengerInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	passenger, err := server.store.UpdatePassenger(request.Context(), input.passenger(id))
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, passenger)
}

func (server *Server) handleDeletePassenger(writer http.ResponseWriter, request *http.Request) {
	server.deleteByID(writer, request, server.store.DeletePassenger)
}

func (server *Server) handleListUsers(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()
	page, err := ParsePage(values)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	filter := store.UserFilter{Role: model.Role(values.Get("role")), Query: strings.TrimSpace(values.Get("q"))}
	users, err := server.store.ListUsers(request.Context(), filter, page)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, users)
}

func (server *Server) handleCreateUser(writer http.ResponseWriter, request *http.Request) {
	var input userInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	if input.Password == "" {
		server.writeError(writer, request, badRequest("password is required"))
		return
	}
	hash, err := authz.HashPassword(input.Password)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	user, err := server.store.CreateUser(request.Context(), model.User{
		Email:        input.Email,
		Name:         input.Name,
		Role:         input.Role,
		PasswordHash: hash,
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusCreated, user)
}

func (server *Server) handleGetUser(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	user, err := server.store.GetUser(request.Context(), id)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, user)
}

// handleUpdateUser keeps the current password unless a new one is given.
func (server *Server) handleUpdateUser(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	var input userInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	user := model.User{ID: id, Email: input.Email, Name: input.Name, Role: input.Role}
	if input.Password != "" {
		if user.PasswordHash, err = authz.HashPassword(input.Password); err != nil {
			server.writeError(writer, request, err)
			return
		}
	}
	user, err = server.store.UpdateUser(request.Context(), user)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, user)
}

func (server *Server) handleDeleteUser(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if id == authz.PrincipalFrom(request.Context()).UserID {
		server.writeError(writer, request, badRequest("cannot delete the signed-in user"))
		return
	}
	if err := server.store.DeleteUser(request.Context(), id); err != nil {
		server.writeError(writer, request, err)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

func (server *Server) startSession(request *http.Request, user model.User) (sessionResponse, error) {
	token, hash, err := authz.NewSessionToken()
	if err != nil {
		return sessionResponse{}, err
	}
	expiresAt, err := server.store.CreateSession(request.Context(), hash, user.ID, server.sessionTTL)
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// handleRegister creates a customer account and signs it in.
func (server *Server) handleRegister(writer http.ResponseWriter, request *http.Request) {
	var input registerInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	hash, err := authz.HashPassword(input.Password)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	user, err := server.store.CreateUser(request.Context(), model.User{
		Email:        input.Email,
		Name:         input.Name,
		Role:         model.RoleCustomer,
		PasswordHash: hash,
	})
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	session, err := server.startSession(request, user)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.logger.Info("user registered", "user", user.ID)
	server.writeJSON(writer, request, http.StatusCreated, session)
}

func (server *Server) handleLogin(writer http.ResponseWriter, request *http.Request) {
	var input loginInput
	if err := server.decode(writer, request, &input); err != nil {
		server.writeError(writer, request, err)
		return
	}
	user, err := server.store.GetUserByEmail(request.Context(), input.Email)
	if errors.Is(err, store.ErrNotFound) {
		server.writeError(writer, request, authz.ErrInvalidCredentials)
		return
	}
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	if err := authz.CheckPassword(user.PasswordHash, input.Password); err != nil {
		server.writeError(writer, request, err)
		return
	}
	session, err := server.startSession(request, user)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, session)
}

func (server *Server) handleLogout(writer http.ResponseWriter, request *http.Request) {
	hash := sessionHash(request.Context())
	if hash == "" {
		server.writeError(writer, request, errUnauthenticated)
		return
	}
	if err := server.store.DeleteSession(request.Context(), hash); err != nil && !errors.Is(err, store.ErrNotFound) {
		server.writeError(writer, request, err)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleMe(writer http.ResponseWriter, request *http.Request) {
	user, err := server.store.GetUser(request.Context(), authz.PrincipalFrom(request.Context()).UserID)
	if err != nil {
		server.writeError(writer, request, err)
		return
	}
	server.writeJSON(writer, request, http.StatusOK, user)
}
