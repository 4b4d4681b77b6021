// handlers.go specifies the HTTP handlers of the index server.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/SpatiumPortae/peershare/internal/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// lister is implemented by stores able to enumerate their files.
type lister interface {
	Files() []string
}

func (s *Server) handleLookup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fileName, ok := pathVar(w, r, "fileName")
		if !ok {
			return
		}
		addr, err := s.store.Lookup(ctx, fileName)
		if err != nil {
			s.writeStoreError(w, r, err, fmt.Sprintf("The file %s is not currently being shared by any peer.", fileName))
			return
		}
		w.Header().Set("Location", recordPath(fileName, addr))
		writeJSON(w, r, http.StatusOK, FileMessage{FileName: fileName, HostAddress: addr})
	}
}

func (s *Server) handleCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fileName, ok := pathVar(w, r, "fileName")
		if !ok {
			return
		}
		addr, ok := pathVar(w, r, "peerAddress")
		if !ok {
			return
		}
		if err := s.store.Check(ctx, fileName, addr); err != nil {
			s.writeStoreError(w, r, err, fmt.Sprintf("The file %s is not shared by the peer at %s.", fileName, addr))
			return
		}
		w.Header().Set("Location", recordPath(fileName, addr))
		writeJSON(w, r, http.StatusOK, FileMessage{FileName: fileName, HostAddress: addr})
	}
}

func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var msg FileMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, r, http.StatusBadRequest, "The request body is not a valid file message.")
			return
		}
		msg.FileName = strings.TrimSpace(msg.FileName)
		msg.HostAddress = strings.TrimSpace(msg.HostAddress)
		if msg.FileName == "" || msg.HostAddress == "" {
			writeError(w, r, http.StatusBadRequest, "Both fileName and hostAddress are required.")
			return
		}
		if err := s.store.Register(ctx, msg.FileName, msg.HostAddress); err != nil {
			s.writeStoreError(w, r, err, fmt.Sprintf("The file %s is already shared by the peer at %s.", msg.FileName, msg.HostAddress))
			return
		}
		if lgr, err := logger.FromContext(ctx); err == nil {
			lgr.Info("registered shared file", zap.String("file", msg.FileName), zap.String("peer", msg.HostAddress))
		}
		w.Header().Set("Location", recordPath(msg.FileName, msg.HostAddress))
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) handleDeregister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fileName, ok := pathVar(w, r, "fileName")
		if !ok {
			return
		}
		addr, ok := pathVar(w, r, "peerAddress")
		if !ok {
			return
		}
		if err := s.store.Deregister(ctx, fileName, addr); err != nil {
			s.writeStoreError(w, r, err, fmt.Sprintf("The file %s is not shared by the peer at %s.", fileName, addr))
			return
		}
		if lgr, err := logger.FromContext(ctx); err == nil {
			lgr.Info("deregistered shared file", zap.String("file", fileName), zap.String("peer", addr))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := s.store.(lister)
		if !ok {
			writeError(w, r, http.StatusNotImplemented, "Listing shared files is not supported by this index.")
			return
		}
		writeJSON(w, r, http.StatusOK, l.Files())
	}
}

//nolint:errcheck
func (s *Server) ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}
}

func (s *Server) handleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, s.version)
	}
}

// ------------------------------------------------------ Helpers ------------------------------------------------------

// writeStoreError maps a store error onto a response. The message is used for
// the expected sentinel errors only.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotShared):
		writeError(w, r, http.StatusNotFound, msg)
	case errors.Is(err, ErrAlreadyShared):
		writeError(w, r, http.StatusConflict, msg)
	default:
		if lgr, lerr := logger.FromContext(r.Context()); lerr == nil {
			lgr.Error("accessing store", zap.Error(err))
		}
		writeError(w, r, http.StatusInternalServerError, "The index could not process the request.")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, ErrorMessage{Message: msg, StatusCode: status})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if lgr, lerr := logger.FromContext(r.Context()); lerr == nil {
			lgr.Warn("writing response", zap.Error(err))
		}
	}
}

// pathVar returns the unescaped route variable, answering 400 if it is malformed.
func pathVar(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil || v == "" {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Malformed %s in request path.", name))
		return "", false
	}
	return v, true
}

func recordPath(fileName, peerAddr string) string {
	return "/sharedfiles/" + url.PathEscape(fileName) + "/peers/" + url.PathEscape(peerAddr)
}
