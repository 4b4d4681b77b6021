package index

import (
	"net/http"

	"github.com/SpatiumPortae/peershare/internal/logger"
)

func (s *Server) routes() {
	s.router.Use(logger.Middleware(s.logger))
	s.router.HandleFunc("/ping", s.ping()).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion()).Methods(http.MethodGet)

	files := s.router.PathPrefix("/sharedfiles").Subrouter()
	files.HandleFunc("", s.handleList()).Methods(http.MethodGet)
	files.HandleFunc("", s.handleRegister()).Methods(http.MethodPost)
	files.HandleFunc("/{fileName}", s.handleLookup()).Methods(http.MethodGet)
	files.HandleFunc("/{fileName}/peers/{peerAddress}", s.handleCheck()).Methods(http.MethodGet)
	files.HandleFunc("/{fileName}/peers/{peerAddress}", s.handleDeregister()).Methods(http.MethodDelete)
}
