package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/application/services/allocation"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
)

type errorResponse struct {
	Error string `json:"error"`
}

type quantityRequest struct {
	Quantity any `json:"quantity"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

type candidatesResponse struct {
	OrderLineID entities.OrderLineID    `json:"order_line_id"`
	Lots        []entities.CandidateLot `json:"lots"`
	Error       string                  `json:"error,omitempty"`
}

type autoAllocateAllResponse struct {
	Results map[entities.OrderLineID]dto.EditResult `json:"results"`
	Error   string                                  `json:"error,omitempty"`
}

// RegisterAllocationRoutes mounts the session commands on r.
func (s *Server) RegisterAllocationRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/load", s.handleLoadOrder)
	r.Post("/auto-allocate", s.handleAutoAllocateAll)
	r.Post("/reset", s.handleReset)
	r.Delete("/selection", s.handleDeselect)

	r.Route("/lines", func(r chi.Router) {
		r.Get("/", s.handleSummaries)
		r.Route("/{lineID}", func(r chi.Router) {
			r.Get("/", s.handleSummary)
			r.Post("/select", s.handleSelect)
			r.Get("/candidates", s.handleCandidates)
			r.Put("/lots/{lotID}", s.handleSetLotQuantity)
			r.Post("/auto-allocate", s.handleAutoAllocate)
			r.Delete("/draft", s.handleClear)
			r.Post("/commit", s.handleCommit)
			r.Get("/reservations", s.handleReservations)
			r.Post("/reservations/{reservationID}/cancel", s.handleCancel)
		})
	})
}

func lineID(r *http.Request) entities.OrderLineID {
	return entities.OrderLineID(chi.URLParam(r, "lineID"))
}

func (s *Server) handleLoadOrder(w http.ResponseWriter, r *http.Request) {
	orderID := entities.OrderID(chi.URLParam(r, "orderID"))
	if err := s.session.LoadOrder(r.Context(), orderID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Summaries(r.Context()))
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Summaries(r.Context()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.session.Summary(r.Context(), lineID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.Select(r.Context(), lineID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCandidates(w, view)
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.session.Deselect(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	view := s.session.Candidates(r.Context(), lineID(r))
	if errors.Is(view.Err, allocation.ErrUnknownLine) {
		s.writeError(w, r, view.Err)
		return
	}
	writeCandidates(w, view)
}

// writeCandidates keeps a failed fetch distinguishable from an empty list
func writeCandidates(w http.ResponseWriter, view dto.CandidateView) {
	resp := candidatesResponse{OrderLineID: view.OrderLineID, Lots: view.Lots}
	status := http.StatusOK
	if view.Failed() {
		resp.Error = view.Err.Error()
		status = http.StatusBadGateway
	}
	if resp.Lots == nil {
		resp.Lots = []entities.CandidateLot{}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSetLotQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	result, err := s.session.SetLotQuantity(r.Context(), lineID(r), entities.LotID(chi.URLParam(r, "lotID")), req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAutoAllocate(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.AutoAllocate(r.Context(), lineID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAutoAllocateAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.session.AutoAllocateAll(r.Context())
	resp := autoAllocateAllResponse{Results: results}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.Clear(r.Context(), lineID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.Commit(r.Context(), lineID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	id := lineID(r)
	if _, err := s.session.Summary(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.RefreshReservations(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	records := s.session.Reservations(id)
	if records == nil {
		records = []entities.Reservation{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	result, err := s.session.Cancel(
		r.Context(),
		lineID(r),
		entities.ReservationID(chi.URLParam(r, "reservationID")),
		entities.CancelReason(req.Reason),
		req.Note,
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps session and ledger errors to HTTP status codes
func statusFor(err error) int {
	var perr *repositories.PersistenceError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.Is(err, allocation.ErrLineBusy), errors.Is(err, allocation.ErrOverAllocated):
		return http.StatusConflict
	case errors.Is(err, allocation.ErrNothingToCommit),
		errors.Is(err, allocation.ErrCandidatesNotLoaded),
		errors.Is(err, allocation.ErrReservationNotHard),
		errors.Is(err, allocation.ErrInvalidCancelReason):
		return http.StatusUnprocessableEntity
	case errors.Is(err, allocation.ErrUnknownLine),
		errors.Is(err, allocation.ErrUnknownLot),
		errors.Is(err, allocation.ErrReservationNotFound),
		errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	var perr *repositories.PersistenceError
	if errors.As(err, &perr) {
		message = perr.UserMessage()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
