// Copyright 2025 James Ross
// Package approvalapi exposes the manual approval gate as a small
// HTTP surface: list rows waiting on a decision, and record one.
package approvalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/flyingrobots/pigtrack/internal/outbox"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server wraps an outbox.Store behind gorilla/mux routes.
type Server struct {
	store outbox.Store
	log   *zap.Logger
	srv   *http.Server
}

// New builds a Server listening on addr.
func New(store outbox.Store, addr string, log *zap.Logger) *Server {
	s := &Server{store: store, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/waiting", s.handleListWaiting).Methods(http.MethodGet)
	r.HandleFunc("/decide", s.handleDecide).Methods(http.MethodPost)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// ListenAndServe runs the server; it returns http.ErrServerClosed on a
// graceful Shutdown.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown delegates to the underlying *http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// waitingItem is the wire shape for one row awaiting a decision.
type waitingItem struct {
	ID            int64           `json:"id"`
	PigID         string          `json:"pig_id"`
	NotifType     string          `json:"notif_type"`
	Payload       json.RawMessage `json:"payload"`
	ApprovalToken string          `json:"approval_token"`
}

func (s *Server) handleListWaiting(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := s.store.ListWaitingForApproval(r.Context(), limit)
	if err != nil {
		s.log.Error("list waiting for approval failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]waitingItem, 0, len(items))
	for _, it := range items {
		out = append(out, waitingItem{
			ID:            it.ID,
			PigID:         it.PigID,
			NotifType:     it.NotifType,
			Payload:       it.Payload,
			ApprovalToken: it.ApprovalToken,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Error("encode waiting list failed", zap.Error(err))
	}
}

// decideRequest is the body expected by POST /decide.
type decideRequest struct {
	ID       int64  `json:"id"`
	Token    string `json:"token"`
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
}

type decideResponse struct {
	Updated bool `json:"updated"`
}

var errInvalidDecision = errors.New("decision must be APPROVED or REJECTED")

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var decision outbox.ApprovalStatus
	switch req.Decision {
	case string(outbox.ApprovalApproved):
		decision = outbox.ApprovalApproved
	case string(outbox.ApprovalRejected):
		decision = outbox.ApprovalRejected
	default:
		http.Error(w, errInvalidDecision.Error(), http.StatusBadRequest)
		return
	}

	updated, err := s.store.DecideApproval(r.Context(), req.ID, req.Token, decision, req.Actor)
	if err != nil {
		s.log.Error("decide approval failed", zap.Int64("id", req.ID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !updated {
		w.WriteHeader(http.StatusConflict)
	}
	if err := json.NewEncoder(w).Encode(decideResponse{Updated: updated}); err != nil {
		s.log.Error("encode decide response failed", zap.Error(err))
	}
}
