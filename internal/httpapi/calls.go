package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/realtime"
	"github.com/collectvoice/collectvoice/internal/store"
)

// StartCallRequest is the call-initiation payload from the dialer frontend.
type StartCallRequest struct {
	CustomerName string  `json:"customer_name"`
	SystemID     string  `json:"system_id"`
	LoanID       string  `json:"loan_id"`
	DueDate      string  `json:"due_date"`
	DueAmount    float64 `json:"due_amount"`
	Product      string  `json:"product"`
}

type StartCallResponse struct {
	CallID       string           `json:"call_id"`
	CreatedAt    string           `json:"created_at"`
	Status       string           `json:"status"`
	CustomerName string           `json:"customer_name"`
	SystemID     string           `json:"system_id"`
	LoanID       string           `json:"loan_id"`
	DueDate      string           `json:"due_date"`
	DueAmount    float64          `json:"due_amount"`
	Product      string           `json:"product"`
	Initiate     StartCallRequest `json:"initiate"`
}

type callHistoryResponse struct {
	CallID  string          `json:"call_id"`
	History []realtime.Turn `json:"history"`
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req StartCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.LoanID) == "" || strings.TrimSpace(req.SystemID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "loan_id and system_id are required")
		return
	}

	callID := uuid.NewString()
	log := s.log.With(zap.String("call_id", callID))

	initiate, err := json.Marshal(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	sess := s.store.Create(callID, initiate)
	s.metrics.CallEvents.WithLabelValues("created").Inc()

	// Resolver failure is a degraded call, never a failed one: the bridge
	// proceeds with whatever personalization data is available.
	record := store.CustomerRecord{}
	resolveStart := time.Now()
	res, err := s.resolver.Resolve(r.Context(), req.LoanID, req.SystemID)
	s.metrics.ObserveCallStage("resolve_context", time.Since(resolveStart))
	if err != nil {
		log.Warn("customer context resolution failed, continuing with empty record",
			zap.String("loan_id", req.LoanID), zap.Error(err))
		s.metrics.CallEvents.WithLabelValues("resolver_degraded").Inc()
	} else {
		record = res.Record
		if res.Disposition != "" {
			if err := s.store.SetDisposition(callID, res.Disposition); err != nil {
				log.Warn("store disposition", zap.Error(err))
			}
		}
	}
	if err := s.store.SetMetadata(callID, record); err != nil {
		log.Warn("store call metadata", zap.Error(err))
	}

	log.Info("call created",
		zap.String("loan_id", req.LoanID),
		zap.Bool("resolved", !record.Empty()))

	respondJSON(w, http.StatusOK, StartCallResponse{
		CallID:       callID,
		CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
		Status:       "COMPLETED",
		CustomerName: req.CustomerName,
		SystemID:     req.SystemID,
		LoanID:       req.LoanID,
		DueDate:      req.DueDate,
		DueAmount:    req.DueAmount,
		Product:      req.Product,
		Initiate:     req,
	})
}

func (s *Server) handleCallHistory(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")
	if _, err := s.store.Get(callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "call_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	history := []realtime.Turn{}
	if conn, ok := s.liveConn(callID); ok {
		history = conn.History()
	}
	respondJSON(w, http.StatusOK, callHistoryResponse{CallID: callID, History: history})
}
