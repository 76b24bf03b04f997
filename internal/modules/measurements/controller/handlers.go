package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"psychro-dash/internal/modules/measurements/repository"
	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/psychro"
	"psychro-dash/internal/utils"
)

func (c *measurementControllerImpl) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r, c.now().UTC(), 0)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r, defaultMeasurementsLimit, maxMeasurementsLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ms, err := c.service.Measurements(r.Context(), win.From, win.To, limit)
	if err != nil {
		slog.Error("measurements: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	utils.WriteJSON(w, http.StatusOK, ms)
}

func (c *measurementControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	m, err := c.service.Latest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "no measurements recorded yet")
		return
	}
	if err != nil {
		slog.Error("latest: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load latest measurement")
		return
	}
	utils.WriteJSON(w, http.StatusOK, m)
}

func (c *measurementControllerImpl) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.Count(r.Context())
	if err != nil {
		slog.Error("count: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to count measurements")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (c *measurementControllerImpl) handleSummary(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r, c.now().UTC(), defaultSummaryMinutes)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := c.service.Summary(r.Context(), win.From, win.To)
	if err != nil {
		slog.Error("summary: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to summarise measurements")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sum)
}

type computeRequest struct {
	DryBulb   *float64   `json:"dryBulb"`
	WetBulb   *float64   `json:"wetBulb"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleCompute serves manual entry: the state is computed and returned, never stored.
func (c *measurementControllerImpl) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DryBulb == nil || req.WetBulb == nil {
		utils.WriteError(w, http.StatusBadRequest, "'dryBulb' and 'wetBulb' are required")
		return
	}

	reading := psychro.Reading{DryBulb: *req.DryBulb, WetBulb: *req.WetBulb, Timestamp: c.now().UTC()}
	if req.Timestamp != nil {
		reading.Timestamp = *req.Timestamp
	}

	m, err := c.service.Ingest(r.Context(), types.Source{Kind: types.SourceManual}, reading)
	if err != nil {
		if code, ok := psychro.CodeOf(err); ok {
			utils.WriteCodedError(w, http.StatusUnprocessableEntity, string(code), err.Error())
			return
		}
		slog.Error("compute: ingest failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to compute state")
		return
	}
	utils.WriteJSON(w, http.StatusOK, m.State)
}

func (c *measurementControllerImpl) handleRejections(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRejectionsLimit, maxRejectionsLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rejs, err := c.service.Rejections(r.Context(), limit)
	if err != nil {
		slog.Error("rejections: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load rejections")
		return
	}
	utils.WriteJSON(w, http.StatusOK, rejs)
}
