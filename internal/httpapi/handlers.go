package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/service"
)

type statusResponse struct {
	Symbol       string            `json:"symbol"`
	HorizonWeeks int               `json:"horizon_weeks"`
	Right        string            `json:"right"`
	Cycle        uint64            `json:"cycle"`
	Phase        string            `json:"phase"`
	Quotes       int               `json:"quotes"`
	MarketOpen   bool              `json:"market_open"`
	Live         int               `json:"live_requests"`
	Streaming    int               `json:"streaming_requests"`
	LastID       gateway.RequestID `json:"last_request_id"`
	Uncorrelated uint64            `json:"uncorrelated_events"`
	Errors       uint64            `json:"errors"`
}

type underlyingResponse struct {
	Symbol       string   `json:"symbol"`
	ContractID   int64    `json:"con_id,omitempty"`
	LastPrice    *float64 `json:"last_price"`
	HorizonWeeks int      `json:"horizon_weeks"`
}

type entryResponse struct {
	ID        gateway.RequestID `json:"id"`
	Command   string            `json:"command"`
	Scope     uint64            `json:"scope"`
	Parent    gateway.RequestID `json:"parent,omitempty"`
	Streaming bool              `json:"streaming"`
	Done      bool              `json:"done"`
	AgeMillis int64             `json:"age_ms"`
}

type ledgerResponse struct {
	Issued    map[string]uint64 `json:"issued"`
	Completed uint64            `json:"completed"`
	Cancelled uint64            `json:"cancelled"`
	Retired   uint64            `json:"retired"`
	Entries   []entryResponse   `json:"entries"`
}

type diagnosticResponse struct {
	ID        int64             `json:"id"`
	Time      time.Time         `json:"time"`
	Source    string            `json:"source"`
	Severity  string            `json:"severity"`
	RequestID gateway.RequestID `json:"req_id,omitempty"`
	Command   string            `json:"command,omitempty"`
	Code      int               `json:"code,omitempty"`
	Message   string            `json:"message"`
}

type diagnosticsResponse struct {
	Total int64                `json:"total"`
	Items []diagnosticResponse `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// commandStatus maps a board error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, options.ErrEmptySymbol), errors.Is(err, options.ErrInvalidHorizon):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) status() statusResponse {
	st := s.board.Status()
	return statusResponse{
		Symbol:       st.Symbol,
		HorizonWeeks: st.HorizonWeeks,
		Right:        st.Right.String(),
		Cycle:        st.Cycle,
		Phase:        st.Phase.String(),
		Quotes:       st.Quotes,
		MarketOpen:   s.board.MarketOpen(),
		Live:         st.Ledger.Live,
		Streaming:    st.Ledger.Streaming,
		LastID:       st.Ledger.LastID,
		Uncorrelated: st.Engine.Uncorrelated,
		Errors:       st.Engine.Errors,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleUnderlying(w http.ResponseWriter, r *http.Request) {
	u := s.board.Underlying()
	writeJSON(w, http.StatusOK, underlyingResponse{
		Symbol:       u.Symbol,
		ContractID:   u.ContractID,
		LastPrice:    u.LastPrice,
		HorizonWeeks: u.HorizonWeeks,
	})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	rows := s.board.Snapshot()
	if rows == nil {
		rows = []service.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	counts := s.board.Status().Ledger
	resp := ledgerResponse{
		Issued:    make(map[string]uint64, len(counts.Issued)),
		Completed: counts.Completed,
		Cancelled: counts.Cancelled,
		Retired:   counts.Retired,
		Entries:   []entryResponse{},
	}
	for k, n := range counts.Issued {
		resp.Issued[k.String()] = n
	}
	outstanding := s.board.Outstanding()
	now := time.Now()
	for _, e := range outstanding {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:        e.ID,
			Command:   e.Kind().String(),
			Scope:     uint64(e.Scope),
			Parent:    e.Parent,
			Streaming: e.Streaming(),
			Done:      e.Done,
			AgeMillis: now.Sub(e.Issued).Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	n := 50
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("n must be a positive integer"))
			return
		}
		n = v
	}
	resp := diagnosticsResponse{Items: []diagnosticResponse{}}
	if s.diags != nil {
		resp.Total = s.diags.Total()
		for _, d := range s.diags.Latest(n) {
			resp.Items = append(resp.Items, diagnosticResponse{
				ID:        int64(d.ID),
				Time:      time.Unix(0, d.Time).UTC(),
				Source:    string(d.Source),
				Severity:  d.Severity.String(),
				RequestID: d.RequestID,
				Command:   d.Command,
				Code:      d.Code,
				Message:   d.Message,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Account())
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CommandTimeout)
	defer cancel()

	if err := run(ctx); err != nil {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("command rejected")
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.status())
}

func (s *Server) handleLoadSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.command(w, r, func(ctx context.Context) error {
		return s.board.LoadSymbol(ctx, req.Symbol)
	})
}

func (s *Server) handleHorizon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weeks int `json:"weeks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.command(w, r, func(ctx context.Context) error {
		return s.board.SetHorizonWeeks(ctx, req.Weeks)
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.board.Reload)
}

func (s *Server) handleRefreshAccount(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.board.RefreshAccount)
}
