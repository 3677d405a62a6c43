package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/sentinel/internal/domain"
)

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jobRequest is the wire shape of POST /jobs (spec §6).
type jobRequest struct {
	Indicator     domain.Family `json:"indicator"`
	PeriodMin     int           `json:"period_min"`
	PeriodMax     int           `json:"period_max"`
	Tickers       []string      `json:"tickers"`
	Comparator    string        `json:"comparator"`
	ThresholdMin  float64       `json:"threshold_min"`
	ThresholdMax  float64       `json:"threshold_max"`
	ThresholdStep float64       `json:"threshold_step"`
	MinTIM        float64       `json:"min_tim"`
	MinTIMAR      float64       `json:"min_timar"`
	MaxDD         float64       `json:"max_dd"`
	MinTrades     int           `json:"min_trades"`
	MinTIMARDD    float64       `json:"min_timardd"`
	SplitStrategy string        `json:"split_strategy"`
	OOSStartDate  string        `json:"oos_start_date,omitempty"`
	NumWorkers    int           `json:"num_workers,omitempty"`
	CostBps       float64       `json:"cost_bps,omitempty"`
}

func (req jobRequest) toConfig() (domain.JobConfig, error) {
	cfg := domain.JobConfig{
		Indicator:     req.Indicator,
		PeriodMin:     req.PeriodMin,
		PeriodMax:     req.PeriodMax,
		Tickers:       req.Tickers,
		Comparator:    req.Comparator,
		ThresholdMin:  req.ThresholdMin,
		ThresholdMax:  req.ThresholdMax,
		ThresholdStep: req.ThresholdStep,
		MinTIM:        req.MinTIM,
		MinTIMAR:      req.MinTIMAR,
		MaxDD:         req.MaxDD,
		MinTrades:     req.MinTrades,
		MinTIMARDD:    req.MinTIMARDD,
		SplitStrategy: domain.SplitPolicy(req.SplitStrategy),
		NumWorkers:    req.NumWorkers,
		CostBps:       req.CostBps,
	}
	if req.OOSStartDate != "" {
		t, err := time.Parse("2006-01-02", req.OOSStartDate)
		if err != nil {
			return domain.JobConfig{}, err
		}
		cfg.OOSStartDate = t
	}
	return cfg, nil
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := req.toConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, err := s.runner.Submit(cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.runner.Status(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	results, err := s.runner.Results(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.runner.Cancel(jobID) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleProgressWS streams ProgressSnapshot events for a job until it
// settles or the client disconnects.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	updates, unsubscribe := s.runner.Subscribe(jobID)
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case snapshot, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			if err := wsjson.Write(ctx, conn, snapshot); err != nil {
				return
			}
			if snapshot.Status == domain.JobCompleted || snapshot.Status == domain.JobCancelled || snapshot.Status == domain.JobFailed {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
		}
	}
}
