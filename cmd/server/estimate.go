package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/owrk/linercost/internal/estimate"
	"github.com/owrk/linercost/internal/workbook"
)

type estimateRequest struct {
	PipeType string  `json:"pipe_type"`
	Diameter float64 `json:"diameter"`
	Length   float64 `json:"length"`
	IsRiser  bool    `json:"is_riser"`
}

func (req estimateRequest) options() estimate.Options {
	return estimate.Options{
		PipeType: estimate.PipeType(req.PipeType),
		Diameter: req.Diameter,
		Length:   req.Length,
		Riser:    req.IsRiser,
	}
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.calculate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleEstimateExport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.calculate(w, r)
	if !ok {
		return
	}

	data, err := workbook.Estimate(res.opts, res.Result)
	if err != nil {
		log.Printf("estimate export: render workbook: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to render estimate workbook")
		return
	}

	filename := fmt.Sprintf("estimate-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("estimate export: write response: %v", err)
	}
}

type calculated struct {
	estimate.Result
	opts estimate.Options
}

// calculate parses the request body, runs the engine and maps the error
// taxonomy to status codes. It writes the error response itself and
// reports ok=false when the caller should stop.
func (s *server) calculate(w http.ResponseWriter, r *http.Request) (calculated, bool) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return calculated{}, false
	}

	opts := req.options()
	res, err := estimate.Calculate(s.store, opts)
	if err != nil {
		s.writeEstimateError(w, err)
		return calculated{}, false
	}

	for _, warning := range res.Warnings {
		log.Printf("estimate warning: %s", warning)
	}

	return calculated{Result: res, opts: opts}, true
}

func (s *server) writeEstimateError(w http.ResponseWriter, err error) {
	var invalid *estimate.InvalidInputError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	}

	var noRule *estimate.NoApplicableRuleError
	if errors.As(err, &noRule) {
		writeError(w, http.StatusNotFound, noRule.Error())
		return
	}

	var integrity *estimate.DataIntegrityError
	if errors.As(err, &integrity) {
		log.Printf("estimate: rate book inconsistency: %v", integrity)
		writeError(w, http.StatusInternalServerError, integrity.Error())
		return
	}

	log.Printf("estimate: %v", err)
	writeError(w, http.StatusInternalServerError, "estimate failed")
}
