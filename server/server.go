// Package server exposes the services over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/tickets"
)

// Snapshotter reports the state of every semaphore slot.
type Snapshotter interface {
	Snapshot() []semaphore.SlotState
}

type Options struct {
	Semaphores semaphore.Interface
	Table      Snapshotter
	Buffer     *buffer.Ring
	Tickets    *tickets.Registry
	CipherKey  byte

	// Metrics are served from MetricsPath if Gatherer is set.
	MetricsPath string
	Gatherer    prometheus.Gatherer

	Logger *zap.Logger
}

type Server struct {
	sems    semaphore.Interface
	table   Snapshotter
	buffer  *buffer.Ring
	tickets *tickets.Registry
	key     byte
	logger  *zap.Logger
	router  *mux.Router
}

func New(o Options) *Server {
	s := &Server{
		sems:    o.Semaphores,
		table:   o.Table,
		buffer:  o.Buffer,
		tickets: o.Tickets,
		key:     o.CipherKey,
		logger:  o.Logger,
		router:  mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	r := s.router
	r.HandleFunc("/semaphores", s.createSemaphore).Methods(http.MethodPost)
	r.HandleFunc("/semaphores", s.listSemaphores).Methods(http.MethodGet)
	r.HandleFunc("/semaphores/{handle}/wait", s.waitSemaphore).Methods(http.MethodPost)
	r.HandleFunc("/semaphores/{handle}/signal", s.signalSemaphore).Methods(http.MethodPost)
	r.HandleFunc("/semaphores/{handle}", s.destroySemaphore).Methods(http.MethodDelete)

	r.HandleFunc("/buffer", s.initBuffer).Methods(http.MethodPost)
	r.HandleFunc("/buffer", s.bufferStatus).Methods(http.MethodGet)
	r.HandleFunc("/buffer/items", s.produce).Methods(http.MethodPost)
	r.HandleFunc("/buffer/items", s.consume).Methods(http.MethodDelete)

	r.HandleFunc("/cipher/{direction:encrypt|decrypt}", s.cipher).Methods(http.MethodPost)

	r.HandleFunc("/tickets/{pid:[0-9]+}", s.setTickets).Methods(http.MethodPut)
	r.HandleFunc("/tickets/{pid:[0-9]+}", s.getTickets).Methods(http.MethodGet)
	r.HandleFunc("/tickets/{pid:[0-9]+}", s.removeTickets).Methods(http.MethodDelete)
	r.HandleFunc("/tickets", s.totalTickets).Methods(http.MethodGet)

	if o.Gatherer != nil && len(o.MetricsPath) != 0 {
		r.Handle(o.MetricsPath, promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Use(s.logRequests)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Listen opens a TCP listener on addr which accepts at most maxConns
// simultaneous connections. Blocked waits hold their connection open.
func Listen(addr string, maxConns int) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return netutil.LimitListener(l, maxConns), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Failed writes mean the client went away; they are only worth a debug line.
func (s *Server) writeFailed(err error) {
	s.logger.Debug("failed to write response", zap.Error(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.writeFailed(err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status, code int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func readJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(mux.Vars(r)[name])
}

var errBadRequest = errors.New("malformed request body")
