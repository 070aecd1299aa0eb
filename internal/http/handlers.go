package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"

	goccy_json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/pickup-dispatch/internal/apperrors"
	"github.com/example/pickup-dispatch/internal/config"
	"github.com/example/pickup-dispatch/internal/feed"
	"github.com/example/pickup-dispatch/internal/ingest"
	"github.com/example/pickup-dispatch/internal/models"
	"github.com/example/pickup-dispatch/internal/observability"
	"github.com/example/pickup-dispatch/internal/resolver"
	"github.com/example/pickup-dispatch/internal/storage"
)

type Server struct {
	Resolver *resolver.Service
	Orders   storage.OrderStore
	Drivers  storage.DriverDirectory
	Kafka    *ingest.KafkaProducer

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the API from config: Postgres when PG_DSN is set, the
// in-memory store otherwise; Kafka ingest only when brokers are configured.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var orders storage.OrderStore
	var drivers storage.DriverDirectory
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		orders, drivers = ps, ps
	} else {
		mem := storage.NewMemoryStore()
		orders, drivers = mem, mem
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	res := &resolver.Service{
		Feed:    feed.NewHTTPClient(cfg.FeedURL),
		Orders:  orders,
		Drivers: drivers,
		Logger:  logger,
	}
	return NewServerWith(res, orders, drivers, kp, logger), nil
}

// NewServerWith assembles a server from already-built collaborators. Tests
// use it to swap in fakes.
func NewServerWith(res *resolver.Service, orders storage.OrderStore, drivers storage.DriverDirectory, kp *ingest.KafkaProducer, logger *slog.Logger) *Server {
	s := &Server{
		Resolver: res,
		Orders:   orders,
		Drivers:  drivers,
		Kafka:    kp,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/drivers/nearest", s.handleNearestDriver).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers", s.handleListDrivers).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/{id:[0-9]+}", s.handleDriverByID).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/{id:[0-9]+}/orders/{day}", s.handleDriverOrdersOnDay).Methods("GET")
	s.mux.HandleFunc("/api/v1/orders/day/{day}", s.handleOrdersOnDay).Methods("GET")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleNearestDriver answers the nearest-available-driver query. A run with
// no candidate left is a valid empty outcome: 200 with a null driver. Error
// statuses are reserved for bad input and a broken feed.
func (s *Server) handleNearestDriver(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latitude, err := strconv.Atoi(q.Get("latitude"))
	if err != nil {
		s.writeError(w, apperrors.ErrInvalidCoordinate, "latitude must be a non-negative integer")
		return
	}
	longitude, err := strconv.Atoi(q.Get("longitude"))
	if err != nil {
		s.writeError(w, apperrors.ErrInvalidCoordinate, "longitude must be a non-negative integer")
		return
	}

	driver, err := s.Resolver.FindNearestAvailableDriver(r.Context(), latitude, longitude, q.Get("day"), q.Get("hour"))
	if err != nil {
		observability.ResolutionsTotal.WithLabelValues("error").Inc()
		if apperrors.HTTPStatus(err) == http.StatusBadGateway {
			observability.UpstreamErrorsTotal.Inc()
		}
		s.writeError(w, err, err.Error())
		return
	}
	if driver == nil {
		observability.ResolutionsTotal.WithLabelValues("none").Inc()
	} else {
		observability.ResolutionsTotal.WithLabelValues("found").Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"driver": driver})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.Drivers.ListDrivers(r.Context())
	if err != nil {
		s.writeError(w, err, "listing drivers failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

func (s *Server) handleDriverByID(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	driver, err := s.Drivers.DriverByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err, "loading driver failed")
		return
	}
	if driver == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "driver not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, driver)
}

func (s *Server) handleDriverOrdersOnDay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.Atoi(vars["id"])
	orders, err := s.Orders.OrdersForDriverOnDay(r.Context(), id, vars["day"])
	if err != nil {
		s.writeError(w, err, "loading orders failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleOrdersOnDay(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Orders.OrdersOnDay(r.Context(), mux.Vars(r)["day"])
	if err != nil {
		s.writeError(w, err, "loading orders failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// handleDriverLocation accepts a location update from a driver app and hands
// it to the ingest stream. The API server itself keeps no location state.
func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.DriverLocation
	if err := goccy_json.NewDecoder(r.Body).Decode(&loc); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(loc); err != nil {
			s.logger.Error("publish location", "driver_id", loc.ID, "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "ingest unavailable"})
			return
		}
		observability.LocationsPublished.Inc()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := goccy_json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, msg string) {
	s.writeJSON(w, apperrors.HTTPStatus(err), map[string]any{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
