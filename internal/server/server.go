// Package server provides the HTTP API for async snapshot operations.
//
// Endpoints:
//
//	POST /snapshots        — enqueue a new snapshot; returns operation ID immediately
//	GET  /snapshots/{id}   — poll operation status and retrieve the published location
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tomasbasham/git-snapshot/internal/operation"
)

// Executor runs an operation to completion. *operation.Worker implements this
// interface.
type Executor interface {
	Run(ctx context.Context, id string)
}

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store    operation.Store
	executor Executor
	mux      *http.ServeMux

	// defaultRoot is used when a request omits the repository root.
	defaultRoot string

	// baseCtx is the parent of every background run. Runs outlive the
	// request that created them but stop when the server shuts down.
	baseCtx context.Context

	// runs tracks background runs so shutdown can wait for their cleanup.
	runs sync.WaitGroup
}

// New creates a Server wired to the given store and executor.
func New(ctx context.Context, store operation.Store, executor Executor, defaultRoot string) *Server {
	s := &Server{
		store:       store,
		executor:    executor,
		defaultRoot: defaultRoot,
		baseCtx:     ctx,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /snapshots", s.handleCreateSnapshot)
	s.mux.HandleFunc("GET /snapshots/{id}", s.handleGetSnapshot)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address and shuts it down
// when the server context is cancelled. After shutdown it waits for runs still
// in flight so their workspaces are removed before it returns.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-s.baseCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.runs.Wait()
		return err
	}
}

// createSnapshotRequest is the JSON body for POST /snapshots.
type createSnapshotRequest struct {
	Root   string `json:"root"`
	Prefix string `json:"prefix"`
}

// createSnapshotResponse is returned immediately from POST /snapshots.
type createSnapshotResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Root == "" {
		req.Root = s.defaultRoot
	}
	if req.Root == "" {
		writeError(w, http.StatusBadRequest, "root is required")
		return
	}

	op, err := s.store.Create(req.Root, req.Prefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create operation: "+err.Error())
		return
	}

	// The request context is not used: the snapshot must not be cancelled
	// when the HTTP connection closes.
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.executor.Run(s.baseCtx, op.ID)
	}()

	writeJSON(w, http.StatusAccepted, createSnapshotResponse{
		OperationID: op.ID,
		Status:      string(operation.StatusPending),
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation id is required")
		return
	}

	op, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("operation %q not found", id))
		return
	}

	writeJSON(w, http.StatusOK, op)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
