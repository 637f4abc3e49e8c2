package service

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/overlay/src/node"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 5 * time.Second
	maxTxBody      = 1 << 20
)

// Service exposes a Node over HTTP.
type Service struct {
	bindAddress string
	node        *node.Node
	router      *mux.Router
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := &Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger.WithField("component", "service"),
	}

	service.registerHandlers()

	return service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering overlay API handlers")

	s.router = mux.NewRouter()

	s.router.HandleFunc("/stats", s.GetStats).Methods("GET")
	s.router.HandleFunc("/peers", s.GetPeers).Methods("GET")
	s.router.HandleFunc("/tx", s.SubmitTx).Methods("POST")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.node.Metrics().Registry, promhttp.HandlerOpts{})).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.router.Use(c.Handler)
	s.router.Use(s.loggingMiddleware)
}

func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Served request")
	})
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving overlay API")

	s.server = &http.Server{
		Addr:         s.bindAddress,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the HTTP server.
func (s *Service) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := s.node.GetStats(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Retrieving stats")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, stats)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	peers, err := s.node.GetPeers(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Retrieving peers")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, peers)
}

// SubmitTx reads a signed, encoded transaction from the request body and
// submits it to the node.
func (s *Service) SubmitTx(w http.ResponseWriter, r *http.Request) {
	blob, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxTxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := protocol.NewTxFrame(blob)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	accepted, err := s.node.SubmitTransaction(ctx, tx)
	if err != nil {
		s.logger.WithError(err).Error("Submitting transaction")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !accepted {
		http.Error(w, "transaction rejected", http.StatusUnprocessableEntity)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"hash": tx.Hash().String()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
