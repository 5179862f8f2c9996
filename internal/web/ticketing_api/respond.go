package ticketing_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

const maxBodyBytes = 1 << 20

// requestError is a client mistake caught before reaching the store.
type requestError struct {
	message string
}

func (err *requestError) Error() string {
	return err.message
}

func badRequest(format string, args ...any) error {
	return &requestError{message: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON sends body with status. Encoding errors after the header is out
// usually mean the client went away, so they are only logged.
func (server *Server) writeJSON(writer http.ResponseWriter, request *http.Request, status int, body any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		server.logger.Debug("response encode failed",
			"method", request.Method,
			"path", request.URL.Path,
			"status", status,
			"error", err,
			"request_id", middleware.GetReqID(request.Context()),
		)
	}
}

func errorStatus(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated),
		errors.Is(err, errInvalidSession),
		errors.Is(err, authz.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrIdempotencyMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrReferenced),
		errors.Is(err, store.ErrSeatTaken),
		errors.Is(err, store.ErrSoldOut),
		errors.Is(err, store.ErrNotBookable):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid),
		errors.Is(err, authz.ErrWeakPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (server *Server) writeError(writer http.ResponseWriter, request *http.Request, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		server.logger.Error("request failed",
			"method", request.Method,
			"path", request.URL.Path,
			"error", err,
			"request_id", middleware.GetReqID(request.Context()),
		)
		message = http.StatusText(status)
	}
	server.writeJSON(writer, request, status, errorBody{Error: message})
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// decode reads a JSON body into target and runs its validate tags.
func (server *Server) decode(writer http.ResponseWriter, request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON: %v", err)
	}
	if decoder.More() {
		return badRequest("invalid JSON: trailing data")
	}

	if err := server.validate.Struct(target); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return badRequest("%s", describeValidation(validationErrors))
		}
		return err
	}
	return nil
}

func describeValidation(validationErrors validator.ValidationErrors) string {
	problems := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		if _, rest, found := strings.Cut(field, "."); found {
			field = rest
		}
		problem := field + " failed " + fieldError.Tag()
		if fieldError.Param() != "" {
			problem += "=" + fieldError.Param()
		}
		problems = append(problems, problem)
	}
	return "validation: " + strings.Join(problems, "; ")
}
