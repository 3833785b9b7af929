package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wakemeup/internal/broker"
	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/location"
	"wakemeup/internal/metrics"
	"wakemeup/internal/placelookup"
)

// AlarmService abstracts the business operations the transport layer
// depends on.
type AlarmService interface {
	Alarms() []alarm.Alarm
	Alarm(id string) (alarm.Alarm, error)
	AddAlarm(ctx context.Context, draft alarm.Alarm) (alarm.Alarm, error)
	UpdateAlarm(ctx context.Context, a alarm.Alarm) (alarm.Alarm, error)
	RemoveAlarm(ctx context.Context, id string) error
	ToggleAlarm(ctx context.Context, id string) (alarm.Alarm, error)
	Session() *location.Session
}

// Server routes the daemon's HTTP surface.
type Server struct {
	router *mux.Router
	alarms AlarmService
	// push is the externally-fed position provider; nil when the daemon runs
	// on a replayed track and the feed endpoints are disabled.
	push   *location.PushProvider
	events broker.Broker
	// places is nil when no API key is configured.
	places *placelookup.Client
}

// NewServer builds the router over the provided services.
func NewServer(
	svc AlarmService,
	push *location.PushProvider,
	events broker.Broker,
	places *placelookup.Client,
) *Server {
	s := &Server{
		router: mux.NewRouter(),
		alarms: svc,
		push:   push,
		events: events,
		places: places,
	}

	s.routes()

	return s
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(countRequests)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/alarms", s.handleListAlarms).Methods(http.MethodGet)
	v1.HandleFunc("/alarms", s.handleAddAlarm).Methods(http.MethodPost)
	v1.HandleFunc("/alarms/{id}", s.handleGetAlarm).Methods(http.MethodGet)
	v1.HandleFunc("/alarms/{id}", s.handleUpdateAlarm).Methods(http.MethodPut)
	v1.HandleFunc("/alarms/{id}", s.handleRemoveAlarm).Methods(http.MethodDelete)
	v1.HandleFunc("/alarms/{id}/toggle", s.handleToggleAlarm).Methods(http.MethodPost)

	v1.HandleFunc("/positions", s.handlePushPosition).Methods(http.MethodPost)
	v1.HandleFunc("/positions/ws", s.handlePositionsWS).Methods(http.MethodGet)
	v1.HandleFunc("/events/ws", s.handleEventsWS).Methods(http.MethodGet)

	v1.HandleFunc("/places/predict", s.handlePlacePredict).Methods(http.MethodGet)
	v1.HandleFunc("/places/resolve", s.handlePlaceResolve).Methods(http.MethodGet)
}

// statusRecorder captures the response status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the wrapped writer so WebSocket upgrades keep
// working behind the counter middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	return hijacker.Hijack()
}

// countRequests increments the request counter per route template, so alarm
// ids do not explode label cardinality.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
	})
}
