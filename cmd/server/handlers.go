package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/aggregate"
	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/period"
	"github.com/quarterly-dev/quarterly/internal/submission"
)

type server struct {
	svc  *submission.Service
	jobs *submission.JobStore
	log  zerolog.Logger
}

type classifyRequest struct {
	BusinessType string              `json:"businessType"`
	Rows         []map[string]string `json:"rows"`
}

type aggregateRequest struct {
	BusinessType  string              `json:"businessType"`
	Period        string              `json:"period"`
	DeclaredShape string              `json:"declaredShape,omitempty"`
	PriorTotals   map[string]string   `json:"priorTotals,omitempty"`
	Rows          []map[string]string `json:"rows"`
}

type countsJSON struct {
	Successful   int `json:"successful"`
	Personal     int `json:"personal"`
	Errors       int `json:"errors"`
	ManualReview int `json:"manualReview"`
	NotProcessed int `json:"notProcessed,omitempty"`
}

type resultJSON struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Category    string  `json:"category,omitempty"`
	IsPersonal  bool    `json:"isPersonal,omitempty"`
	NeedsReview bool    `json:"needsReview,omitempty"`
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale,omitempty"`
	Source      string  `json:"source,omitempty"`
}

type rowErrorJSON struct {
	Index       int    `json:"index"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

type classifyResponse struct {
	Results         []resultJSON   `json:"results"`
	Errors          []rowErrorJSON `json:"errors,omitempty"`
	Counts          countsJSON     `json:"counts"`
	SystemicFailure bool           `json:"systemicFailure,omitempty"`
}

type reportResponse struct {
	BusinessType string            `json:"businessType"`
	Period       string            `json:"period"`
	GeneratedAt  time.Time         `json:"generatedAt"`
	Totals       map[string]string `json:"totals"`
	Summary      struct {
		TotalIncome   string `json:"totalIncome"`
		TotalExpenses string `json:"totalExpenses"`
		NetProfitLoss string `json:"netProfitLoss"`
	} `json:"summary"`
	Exclusions struct {
		InvalidCategories []excludedJSON `json:"invalidCategories"`
		CapitalItems      []excludedJSON `json:"capitalItems"`
	} `json:"exclusions"`
	Counts   countsJSON `json:"transactionCounts"`
	Warnings []string   `json:"warnings,omitempty"`
}

type excludedJSON struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (s *server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.svc.ClassifyBatch(r.Context(), req.Rows, category.BusinessType(req.BusinessType), nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toClassifyResponse(result))
}

func (s *server) handleClassifyAsync(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job := submission.NewJob(category.BusinessType(req.BusinessType), 0, len(req.Rows))
	if err := s.jobs.Create(job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		s.jobs.Update(job.ID, func(j *submission.Job) { j.Status = submission.JobProcessing })
		progress := func(completed, total int, pct float64) {
			s.jobs.Update(job.ID, func(j *submission.Job) {
				j.Completed = completed
				j.Total = total
				j.Percentage = pct
			})
		}

		result, err := s.svc.ClassifyBatch(ctx, req.Rows, category.BusinessType(req.BusinessType), progress)
		s.jobs.Update(job.ID, func(j *submission.Job) {
			j.Result = result
			if err != nil {
				j.Status = submission.JobFailed
				j.Error = err.Error()
				return
			}
			j.Status = submission.JobCompleted
		})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

func (s *server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	target, err := period.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prior, err := parseTotals(req.PriorTotals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.svc.ResolveAndAggregate(r.Context(), req.Rows, target,
		category.BusinessType(req.BusinessType), req.DeclaredShape, prior, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := map[string]interface{}{
		"jobId":      job.ID,
		"status":     string(job.Status),
		"completed":  job.Completed,
		"total":      job.Total,
		"percentage": job.Percentage,
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if job.Result != nil {
		resp["result"] = toClassifyResponse(job.Result)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toClassifyResponse(result *classify.BatchResult) classifyResponse {
	resp := classifyResponse{
		Counts:          toCountsJSON(result.Counts),
		SystemicFailure: result.SystemicFailure,
	}
	for _, res := range result.Results {
		resp.Results = append(resp.Results, resultJSON{
			Index:       res.Index,
			Description: res.Row.Description,
			Amount:      res.Row.Amount.StringFixed(2),
			Category:    string(res.Category),
			IsPersonal:  res.IsPersonal,
			NeedsReview: res.NeedsReview,
			Confidence:  res.Confidence,
			Rationale:   res.Rationale,
			Source:      res.Source,
		})
	}
	for _, re := range result.Errors {
		msg := ""
		if re.Err != nil {
			msg = re.Err.Error()
		}
		resp.Errors = append(resp.Errors, rowErrorJSON{
			Index:       re.Index,
			Description: re.Description,
			Code:        string(re.Code),
			Message:     msg,
		})
	}
	return resp
}

func toReportResponse(report *aggregate.Report) reportResponse {
	resp := reportResponse{
		BusinessType: string(report.BusinessType),
		Period:       report.Period.String(),
		GeneratedAt:  report.GeneratedAt,
		Totals:       make(map[string]string, len(report.Totals)),
		Counts:       toCountsJSON(report.Counts),
		Warnings:     report.Warnings,
	}
	for code, amount := range report.Totals {
		resp.Totals[string(code)] = amount.StringFixed(2)
	}
	resp.Summary.TotalIncome = report.Summary.TotalIncome.StringFixed(2)
	resp.Summary.TotalExpenses = report.Summary.TotalExpenses.StringFixed(2)
	resp.Summary.NetProfitLoss = report.Summary.NetProfitLoss.StringFixed(2)
	resp.Exclusions.InvalidCategories = toExcludedJSON(report.Exclusions.InvalidCategories)
	resp.Exclusions.CapitalItems = toExcludedJSON(report.Exclusions.CapitalItems)
	return resp
}

func toExcludedJSON(items []aggregate.ExcludedItem) []excludedJSON {
	out := make([]excludedJSON, 0, len(items))
	for _, item := range items {
		out = append(out, excludedJSON{
			Category:    string(item.Category),
			Description: item.Description,
			Amount:      item.Amount.StringFixed(2),
		})
	}
	return out
}

func toCountsJSON(c classify.Counts) countsJSON {
	return countsJSON{
		Successful:   c.Successful,
		Personal:     c.Personal,
		Errors:       c.Errors,
		ManualReview: c.ManualReview,
		NotProcessed: c.NotProcessed,
	}
}

func parseTotals(raw map[string]string) (category.Totals, error) {
	if raw == nil {
		return nil, nil
	}
	totals := make(category.Totals, len(raw))
	for code, amount := range raw {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, errors.New("invalid prior total for " + code + ": " + amount)
		}
		totals[category.Code(code)] = d
	}
	return totals, nil
}

// statusFor maps pipeline errors onto HTTP statuses: validation problems are
// the caller's to fix, everything else is upstream.
func statusFor(err error) int {
	var cErr *classify.Error
	if errors.As(err, &cErr) {
		switch cErr.Code {
		case classify.ErrNoClassifiableTransactions:
			return http.StatusUnprocessableEntity
		case classify.ErrClassifierAuth, classify.ErrClassifierQuotaExhausted:
			return http.StatusBadGateway
		}
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
