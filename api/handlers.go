/*
handlers.go - HTTP API handlers for the debt ledger engine

PURPOSE:
  Exposes the ledger and rule engines via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Debtors:
    GET    /api/debtors                       List debtors
    POST   /api/debtors                       Create debtor
    GET    /api/debtors/{id}                  Get debtor with transactions
    PUT    /api/debtors/{id}                  Update contact/limit fields
    DELETE /api/debtors/{id}                  Delete debtor
    POST   /api/debtors/{id}/lock             Lock
    POST   /api/debtors/{id}/unlock           Unlock
    POST   /api/debtors/{id}/transactions     Add transaction
    PUT    /api/debtors/{id}/transactions/{txID}    Edit transaction
    DELETE /api/debtors/{id}/transactions/{txID}    Delete transaction
    POST   /api/debtors/{id}/interest         Bind interest rule
    DELETE /api/debtors/{id}/interest         Unbind interest rule

  Interest:
    GET/POST /api/interest/rules              List/create rules
    PUT      /api/interest/rules/{id}/active  Toggle rule
    GET      /api/interest/bindings           List bindings

  Contracts:
    GET/POST /api/contracts                   List/create
    GET      /api/contracts/{id}
    POST     /api/contracts/{id}/execute      Manual installment
    POST     /api/contracts/{id}/pause
    POST     /api/contracts/{id}/resume

  Incentives:
    GET/POST /api/incentives/rules
    POST     /api/incentives/apply
    POST     /api/incentives/{id}/pay
    GET      /api/incentives/applications

  Splits:
    GET/POST /api/splits
    GET      /api/splits/{id}
    POST     /api/splits/{id}/settle

  Admin:
    POST     /api/admin/tick                  Run rule engines now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: State conflict (locked, already bound/paid/settled, complete, paused)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerline/debt-engine/contract"
	"github.com/ledgerline/debt-engine/incentive"
	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/split"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *ledger.Service
	Interest   *interest.Engine
	Contracts  *contract.Scheduler
	Incentives *incentive.Calculator
	Splits     *split.Allocator
	Scheduler  *RuleScheduler
}

func NewHandler(svc *ledger.Service, in *interest.Engine, ct *contract.Scheduler, inc *incentive.Calculator, sp *split.Allocator, sched *RuleScheduler) *Handler {
	return &Handler{
		Ledger:     svc,
		Interest:   in,
		Contracts:  ct,
		Incentives: inc,
		Splits:     sp,
		Scheduler:  sched,
	}
}

// =============================================================================
// DEBTOR HANDLERS
// =============================================================================

func (h *Handler) ListDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.Ledger.ListDebtors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debtors", err)
		return
	}
	dtos := make([]DebtorDTO, len(debtors))
	for i := range debtors {
		dtos[i] = toDebtorDTO(&debtors[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetDebtor(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	debtor, err := h.Ledger.GetDebtor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtorDTO(debtor))
}

func (h *Handler) CreateDebtor(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schedule, err := parseDates(req.PaymentSchedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_schedule date (use YYYY-MM-DD)", err)
		return
	}

	id, err := h.Ledger.CreateDebtor(r.Context(), ledger.CreateDebtorInput{
		Name:            req.Name,
		Nickname:        req.Nickname,
		Phone:           req.Phone,
		Address:         req.Address,
		DebtLimit:       moneyPtr(req.DebtLimit),
		InterestRate:    req.InterestRate,
		PaymentSchedule: schedule,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	debtor, err := h.Ledger.GetDebtor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtorDTO(debtor))
}

func (h *Handler) UpdateDebtor(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))

	var req UpdateDebtorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	schedule, err := parseDates(req.PaymentSchedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_schedule date (use YYYY-MM-DD)", err)
		return
	}

	err = h.Ledger.UpdateDebtor(r.Context(), id, ledger.DebtorUpdate{
		Name:            req.Name,
		Nickname:        req.Nickname,
		Phone:           req.Phone,
		Address:         req.Address,
		DebtLimit:       moneyPtr(req.DebtLimit),
		ClearDebtLimit:  req.ClearDebtLimit,
		InterestRate:    req.InterestRate,
		PaymentSchedule: schedule,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	debtor, err := h.Ledger.GetDebtor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtorDTO(debtor))
}

func (h *Handler) DeleteDebtor(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	if err := h.Ledger.DeleteDebtor(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LockDebtor(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))

	var req LockRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "locked by operator"
	}

	if err := h.Ledger.LockDebtor(r.Context(), id, reason); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnlockDebtor(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	if err := h.Ledger.UnlockDebtor(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		date = parsed
	}

	txID, err := h.Ledger.AddTransaction(r.Context(), id, ledger.TransactionInput{
		Amount:           ledger.NewMoney(req.Amount),
		Type:             ledger.TransactionType(req.Type),
		Description:      req.Description,
		Date:             date,
		Tags:             req.Tags,
		IsPartialPayment: req.IsPartialPayment,
		PartialPaymentOf: ledger.TransactionID(req.PartialPaymentOf),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transaction_id": string(txID)})
}

func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	txID := ledger.TransactionID(chi.URLParam(r, "txID"))

	var req TransactionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := ledger.TransactionUpdate{
		Description: req.Description,
		Tags:        req.Tags,
	}
	if req.Amount != nil {
		m := ledger.NewMoney(*req.Amount)
		upd.Amount = &m
	}
	if req.Type != nil {
		t := ledger.TransactionType(*req.Type)
		upd.Type = &t
	}
	if req.Date != nil {
		parsed, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		upd.Date = &parsed
	}

	if err := h.Ledger.EditTransaction(r.Context(), id, txID, upd); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	txID := ledger.TransactionID(chi.URLParam(r, "txID"))

	if err := h.Ledger.DeleteTransaction(r.Context(), id, txID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INTEREST HANDLERS
// =============================================================================

func (h *Handler) ListInterestRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Interest.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list interest rules", err)
		return
	}
	dtos := make([]InterestRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toInterestRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateInterestRule(w http.ResponseWriter, r *http.Request) {
	var req InterestRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.Interest.CreateRule(r.Context(), interest.RuleInput{
		Name:           req.Name,
		Rate:           req.Rate,
		Type:           interest.Type(req.Type),
		Frequency:      interest.Frequency(req.Frequency),
		MinAmount:      moneyPtr(req.MinAmount),
		MaxAmount:      moneyPtr(req.MaxAmount),
		ApplyAfterDays: req.ApplyAfterDays,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInterestRuleDTO(rule))
}

func (h *Handler) SetInterestRuleActive(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Interest.SetRuleActive(r.Context(), ruleID, req.Active); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBindings(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.Interest.ListBindings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings", err)
		return
	}
	dtos := make([]BindingDTO, len(bindings))
	for i, b := range bindings {
		dtos[i] = toBindingDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) BindInterest(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))

	var req BindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	binding, err := h.Interest.Bind(r.Context(), id, req.RuleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBindingDTO(binding))
}

func (h *Handler) UnbindInterest(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	if err := h.Interest.Unbind(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Contracts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}
	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var start time.Time
	if req.StartDate != "" {
		parsed, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		start = parsed
	}

	c, err := h.Contracts.Create(r.Context(), contract.CreateInput{
		DebtorID:      ledger.DebtorID(req.DebtorID),
		Amount:        ledger.NewMoney(req.Amount),
		Frequency:     contract.Frequency(req.Frequency),
		StartDate:     start,
		TotalPayments: req.TotalPayments,
		AutoExecute:   req.AutoExecute,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*c))
}

func (h *Handler) ExecuteContractPayment(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.ExecutePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

func (h *Handler) PauseContract(w http.ResponseWriter, r *http.Request) {
	if err := h.Contracts.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResumeContract(w http.ResponseWriter, r *http.Request) {
	if err := h.Contracts.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INCENTIVE HANDLERS
// =============================================================================

func (h *Handler) ListIncentiveRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Incentives.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list incentive rules", err)
		return
	}
	dtos := make([]IncentiveRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toIncentiveRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateIncentiveRule(w http.ResponseWriter, r *http.Request) {
	var req IncentiveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.Incentives.CreateRule(r.Context(), incentive.RuleInput{
		Name:          req.Name,
		Type:          incentive.Type(req.Type),
		Value:         req.Value,
		MinDaysEarly:  req.MinDaysEarly,
		MinDebtAmount: moneyPtr(req.MinDebtAmount),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncentiveRuleDTO(rule))
}

func (h *Handler) ApplyIncentive(w http.ResponseWriter, r *http.Request) {
	var req ApplyIncentiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	app, err := h.Incentives.Apply(r.Context(),
		ledger.DebtorID(req.DebtorID), req.RuleID,
		ledger.NewMoney(req.PaymentAmount), req.DaysEarly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncentiveApplicationDTO(app))
}

func (h *Handler) MarkIncentivePaid(w http.ResponseWriter, r *http.Request) {
	app, err := h.Incentives.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncentiveApplicationDTO(app))
}

func (h *Handler) ListIncentiveApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Incentives.ListApplications(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list applications", err)
		return
	}
	dtos := make([]IncentiveApplicationDTO, len(apps))
	for i, a := range apps {
		dtos[i] = toIncentiveApplicationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SPLIT HANDLERS
// =============================================================================

func (h *Handler) ListSplits(w http.ResponseWriter, r *http.Request) {
	splits, err := h.Splits.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list splits", err)
		return
	}
	dtos := make([]SplitDTO, len(splits))
	for i, s := range splits {
		dtos[i] = toSplitDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	parties := make([]split.Party, len(req.Parties))
	for i, p := range req.Parties {
		parties[i] = split.Party{
			DebtorID:   ledger.DebtorID(p.DebtorID),
			SplitType:  split.SplitType(p.SplitType),
			Amount:     moneyPtr(p.Amount),
			Percentage: p.Percentage,
		}
	}

	s, err := h.Splits.Create(r.Context(), split.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		TotalAmount: ledger.NewMoney(req.TotalAmount),
		Parties:     parties,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSplitDTO(s))
}

func (h *Handler) GetSplit(w http.ResponseWriter, r *http.Request) {
	s, err := h.Splits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSplitDTO(*s))
}

func (h *Handler) SettleSplit(w http.ResponseWriter, r *http.Request) {
	s, err := h.Splits.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSplitDTO(s))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunTick triggers an immediate rule-engine evaluation pass.
func (h *Handler) RunTick(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.RunNow()
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func moneyPtr(v *float64) *ledger.Money {
	if v == nil {
		return nil
	}
	m := ledger.NewMoney(*v)
	return &m
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseDates(dates []string) ([]time.Time, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	out := make([]time.Time, len(dates))
	for i, s := range dates {
		t, err := parseDate(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
