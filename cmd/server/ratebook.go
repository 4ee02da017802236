package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/owrk/linercost/internal/estimate"
	"github.com/owrk/linercost/internal/workbook"
)

func (s *server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListPrices()
	if err != nil {
		log.Printf("list prices: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load price catalog")
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// handleListRules returns the unit-price rules matching a pipe type and
// diameter, i.e. exactly the rule set an estimate for those options
// would be priced from.
func (s *server) handleListRules(w http.ResponseWriter, r *http.Request) {
	pipeType := estimate.PipeType(r.URL.Query().Get("pipe_type"))
	if !estimate.ValidPipeType(pipeType) {
		writeError(w, http.StatusBadRequest, "pipe_type must be steel or ductile")
		return
	}

	diameter, err := strconv.ParseFloat(r.URL.Query().Get("diameter"), 64)
	if err != nil || diameter <= 0 {
		writeError(w, http.StatusBadRequest, "diameter must be a positive number")
		return
	}

	rules, err := s.store.RulesFor(pipeType, diameter)
	if err != nil {
		log.Printf("list rules: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load unit-price rules")
		return
	}
	if rules == nil {
		rules = []estimate.UnitPriceRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *server) handleListSurcharges(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListSurcharges()
	if err != nil {
		log.Printf("list surcharges: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load surcharge rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *server) handleListOverheads(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.OverheadRules()
	if err != nil {
		log.Printf("list overheads: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load overhead rules")
		return
	}
	if rules == nil {
		rules = []estimate.OverheadRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// maxImportSize bounds the uploaded workbook; rate books are a few
// hundred rows at most.
const maxImportSize = 8 << 20

// handleImport replaces the whole rate book from an uploaded xlsx
// workbook. The upload is rejected row-by-row before anything is
// written, so a bad workbook never leaves a half-replaced book behind.
func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload with a file field")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field in upload")
		return
	}
	defer file.Close()

	book, rowErrs, err := workbook.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rowErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "workbook has invalid rows",
			"row_errors": rowErrs,
		})
		return
	}

	if err := book.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := s.store.Replace(book)
	if err != nil {
		log.Printf("import rate book: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to replace rate book")
		return
	}

	log.Printf("rate book replaced: %d prices, %d rules, %d surcharges, %d overheads",
		counts.Prices, counts.Rules, counts.Surcharges, counts.Overheads)
	writeJSON(w, http.StatusOK, counts)
}
