package ticketing_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

type Options struct {
	Store          *store.Store
	Authorizer     *authz.Authorizer
	Metrics        *common.Metrics
	Logger         *slog.Logger
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	store      *store.Store
	authorizer *authz.Authorizer
	metrics    *common.Metrics
	logger     *slog.Logger
	renderer   *Renderer
	validate   *validator.Validate
	sessionTTL time.Duration
	now        func() time.Time

	handler http.Handler
}

func NewServer(options Options) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if options.Metrics == nil {
		options.Metrics = common.NewMetrics(prometheus.NewRegistry())
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.SessionTTL <= 0 {
		options.SessionTTL = defaultSessionTTL
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = defaultRequestTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	server := &Server{
		store:      options.Store,
		authorizer: options.Authorizer,
		metrics:    options.Metrics,
		logger:     options.Logger,
		renderer:   renderer,
		validate:   newValidator(),
		sessionTTL: options.SessionTTL,
		now:        options.Now,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(options.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	router.Use(middleware.Recoverer)
	router.Use(server.instrument)
	router.Use(middleware.Timeout(options.RequestTimeout))
	router.Use(server.authenticate)
	router.Use(server.authorize)

	server.routes(router)
	server.handler = gzhttp.GzipHandler(router)
	return server, nil
}

// Handler is the complete API including middleware.
func (server *Server) Handler() http.Handler {
	return server.handler
}

func (server *Server) routes(router chi.Router) {
	router.Get("/healthz", server.handleHealth)
	router.Get("/board/{code}", server.handleBoardPage)
	router.Get("/board/{code}/partial", server.handleBoardPartial)

	router.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", server.handleRegister)
			auth.Post("/login", server.handleLogin)
			auth.Post("/logout", server.handleLogout)
			auth.Get("/me", server.handleMe)
		})

		api.Route("/stations", func(r chi.Router) {
			r.Get("/", server.handleListStations)
			r.Post("/", server.handleCreateStation)
			r.Get("/{id}", server.handleGetStation)
			r.Put("/{id}", server.handleUpdateStation)
			r.Delete("/{id}", server.handleDeleteStation)
			r.Get("/{id}/departures", server.handleStationDepartures)
		})
		api.Route("/trains", func(r chi.Router) {
			r.Get("/", server.handleListTrains)
			r.Post("/", server.handleCreateTrain)
			r.Get("/{id}", server.handleGetTrain)
			r.Put("/{id}", server.handleUpdateTrain)
			r.Delete("/{id}", server.handleDeleteTrain)
			r.Get("/{id}/coaches", server.handleTrainCoaches)
		})
		api.Route("/coaches", func(r chi.Router) {
			r.Get("/", server.handleListCoaches)
			r.Post("/", server.handleCreateCoach)
			r.Get("/{id}", server.handleGetCoach)
			r.Put("/{id}", server.handleUpdateCoach)
			r.Delete("/{id}", server.handleDeleteCoach)
		})
		api.Route("/schedules", func(r chi.Router) {
			r.Get("/", server.handleListSchedules)
			r.Post("/", server.handleCreateSchedule)
			r.Get("/{id}", server.handleGetSchedule)
			r.Put("/{id}", server.handleUpdateSchedule)
			r.Delete("/{id}", server.handleDeleteSchedule)
			r.Get("/{id}/journeys", server.handleScheduleJourneys)
			r.Get("/{id}/seats", server.handleSeatMap)
		})
		api.Route("/journeys", func(r chi.Router) {
			r.Get("/", server.handleListJourneys)
			r.Post("/", server.handleCreateJourney)
			r.Get("/{id}", server.handleGetJourney)
			r.Put("/{id}", server.handleUpdateJourney)
			r.Delete("/{id}", server.handleDeleteJourney)
		})
		api.Route("/passengers", func(r chi.Router) {
			r.Get("/", server.handleListPassengers)
			r.Post("/", server.handleCreatePassenger)
			r.Get("/{id}", server.handleGetPassenger)
			r.Put("/{id}", server.handleUpdatePassenger)
			r.Delete("/{id}", server.handleDeletePassenger)
		})
		api.Route("/bookings", func(r chi.Router) {
			r.Get("/", server.handleListBookings)
			r.Post("/", server.handleCreateBooking)
			r.Get("/by-reference/{reference}", server.handleBookingByReference)
			r.Get("/{id}", server.handleGetBooking)
			r.Put("/{id}", server.handleUpdateBooking)
			r.Delete("/{id}", server.handleDeleteBooking)
			r.Post("/{id}/cancel", server.handleCancelBooking)
			r.Get("/{id}/receipt", server.handleReceipt)
		})
		api.Route("/tickets", func(r chi.Router) {
			r.Get("/", server.handleListTickets)
			r.Post("/", server.handleCreateTicket)
			r.Get("/{id}", server.handleGetTicket)
			r.Put("/{id}", server.handleUpdateTicket)
			r.Delete("/{id}", server.handleDeleteTicket)
		})
		api.Route("/users", func(r chi.Router) {
			r.Get("/", server.handleListUsers)
			r.Post("/", server.handleCreateUser)
			r.Get("/{id}", server.handleGetUser)
			r.Put("/{id}", server.handleUpdateUser)
			r.Delete("/{id}", server.handleDeleteUser)
		})

		api.Get("/search/trains", server.handleSearchTrains)
		api.Post("/checkout", server.handleCheckout)
		api.Get("/dashboard", server.handleDashboard)
	})
}

func (server *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	if err := server.store.Ping(request.Context()); err != nil {
		server.logger.Error("health check failed", "error", err, "request_id", middleware.GetReqID(request.Context()))
		server.writeJSON(writer, request, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	server.writeJSON(writer, request, http.StatusOK, map[string]string{"status": "ok"})
}
