package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/LaazAlae/alaeautomates-backend/internal/ccbatch"
	"github.com/LaazAlae/alaeautomates-backend/internal/macros"
)

type parseExcelRequest struct {
	ExcelText string `json:"excel_text"`
}

type parseExcelResponse struct {
	Success        bool             `json:"success"`
	RecordsCount   int              `json:"records_count"`
	JavascriptCode string           `json:"javascript_code"`
	ProcessedData  []ccbatch.Record `json:"processed_data"`
	Message        string           `json:"message"`
}

func (s *Server) parseExcelText(w http.ResponseWriter, r *http.Request) {
	var req parseExcelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ExcelText == "" {
		writeError(w, http.StatusBadRequest, "excel_text required")
		return
	}
	records, err := ccbatch.ParseText(req.ExcelText)
	if err != nil {
		if errors.Is(err, ccbatch.ErrNoRecords) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	script, err := ccbatch.GenerateScript(records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	preview := records
	if len(preview) > 10 {
		preview = preview[:10]
	}
	writeJSON(w, http.StatusOK, parseExcelResponse{
		Success:        true,
		RecordsCount:   len(records),
		JavascriptCode: script,
		ProcessedData:  preview,
		Message:        fmt.Sprintf("Successfully generated code for %d records", len(records)),
	})
}

type processBatchRequest struct {
	Rows []ccbatch.Row `json:"rows"`
}

// processBatch accepts pre-extracted workbook rows and runs the full
// normalization pipeline before generating the automation script. Unlike
// parseExcelText, fields arrive raw ("Last, First" customers, masked card
// numbers, parenthesized refund amounts) and are cleaned up here.
func (s *Server) processBatch(w http.ResponseWriter, r *http.Request) {
	var req processBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows required")
		return
	}
	records, err := ccbatch.ProcessRows(req.Rows)
	if err != nil {
		if errors.Is(err, ccbatch.ErrNoRecords) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	script, err := ccbatch.GenerateScript(records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	preview := records
	if len(preview) > 5 {
		preview = preview[:5]
	}
	writeJSON(w, http.StatusOK, parseExcelResponse{
		Success:        true,
		RecordsCount:   len(records),
		JavascriptCode: script,
		ProcessedData:  preview,
		Message:        fmt.Sprintf("Successfully processed %d credit card records", len(records)),
	})
}

type downloadCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) downloadCode(w http.ResponseWriter, r *http.Request) {
	var req downloadCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	name := fmt.Sprintf("cc_batch_automation_%s.js", s.clock.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(req.Code)); err != nil {
		s.logger.Warn("write script download failed")
	}
}

func (s *Server) cleanupMacro(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, macros.Cleanup())
}

func (s *Server) sortMacro(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, macros.SortAndSum())
}
