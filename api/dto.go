/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exposed to callers, kept separate from domain types so the
  wire format can evolve without touching the engines. Amounts cross the
  wire as float64; decimal precision lives inside the domain.
*/
package api

import (
	"time"

	"github.com/ledgerline/debt-engine/contract"
	"github.com/ledgerline/debt-engine/incentive"
	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/split"
)

// =============================================================================
// DEBTORS & TRANSACTIONS
// =============================================================================

type CreateDebtorRequest struct {
	Name            string   `json:"name"`
	Nickname        string   `json:"nickname,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Address         string   `json:"address,omitempty"`
	DebtLimit       *float64 `json:"debt_limit,omitempty"`
	InterestRate    *float64 `json:"interest_rate,omitempty"`
	PaymentSchedule []string `json:"payment_schedule,omitempty"` // ISO dates
}

type UpdateDebtorRequest struct {
	Name            *string  `json:"name,omitempty"`
	Nickname        *string  `json:"nickname,omitempty"`
	Phone           *string  `json:"phone,omitempty"`
	Address         *string  `json:"address,omitempty"`
	DebtLimit       *float64 `json:"debt_limit,omitempty"`
	ClearDebtLimit  bool     `json:"clear_debt_limit,omitempty"`
	InterestRate    *float64 `json:"interest_rate,omitempty"`
	PaymentSchedule []string `json:"payment_schedule,omitempty"`
}

type TransactionRequest struct {
	Amount           float64  `json:"amount"`
	Type             string   `json:"type"` // "debt" or "payment"
	Description      string   `json:"description,omitempty"`
	Date             string   `json:"date,omitempty"` // ISO date, default now
	Tags             []string `json:"tags,omitempty"`
	IsPartialPayment bool     `json:"is_partial_payment,omitempty"`
	PartialPaymentOf string   `json:"partial_payment_of,omitempty"`
}

type TransactionUpdateRequest struct {
	Amount      *float64 `json:"amount,omitempty"`
	Type        *string  `json:"type,omitempty"`
	Description *string  `json:"description,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type LockRequest struct {
	Reason string `json:"reason,omitempty"`
}

type DebtorDTO struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Nickname        string           `json:"nickname,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Address         string           `json:"address,omitempty"`
	TotalDebt       float64          `json:"total_debt"`
	IsLocked        bool             `json:"is_locked"`
	LockedAt        string           `json:"locked_at,omitempty"`
	LockedReason    string           `json:"locked_reason,omitempty"`
	DebtLimit       *float64         `json:"debt_limit,omitempty"`
	InterestRate    *float64         `json:"interest_rate,omitempty"`
	PaymentSchedule []string         `json:"payment_schedule,omitempty"`
	Transactions    []TransactionDTO `json:"transactions"`
	CreatedAt       string           `json:"created_at"`
}

type TransactionDTO struct {
	ID               string   `json:"id"`
	Amount           float64  `json:"amount"`
	Type             string   `json:"type"`
	Date             string   `json:"date"`
	Description      string   `json:"description,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	IsLocked         bool     `json:"is_locked,omitempty"`
	IsPartialPayment bool     `json:"is_partial_payment,omitempty"`
	PartialPaymentOf string   `json:"partial_payment_of,omitempty"`
	EditCount        int      `json:"edit_count"`
}

// =============================================================================
// INTEREST
// =============================================================================

type InterestRuleRequest struct {
	Name           string   `json:"name"`
	Rate           float64  `json:"rate"`
	Type           string   `json:"type"`      // "simple" or "compound"
	Frequency      string   `json:"frequency"` // "daily", "weekly", "monthly", "yearly"
	MinAmount      *float64 `json:"min_amount,omitempty"`
	MaxAmount      *float64 `json:"max_amount,omitempty"`
	ApplyAfterDays int      `json:"apply_after_days,omitempty"`
}

type BindRequest struct {
	RuleID string `json:"rule_id"`
}

type InterestRuleDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Rate           float64  `json:"rate"`
	Type           string   `json:"type"`
	Frequency      string   `json:"frequency"`
	MinAmount      *float64 `json:"min_amount,omitempty"`
	MaxAmount      *float64 `json:"max_amount,omitempty"`
	ApplyAfterDays int      `json:"apply_after_days,omitempty"`
	IsActive       bool     `json:"is_active"`
}

type BindingDTO struct {
	ID                string  `json:"id"`
	DebtorID          string  `json:"debtor_id"`
	RuleID            string  `json:"rule_id"`
	BaseAmount        float64 `json:"base_amount"`
	CurrentInterest   float64 `json:"current_interest"`
	TotalWithInterest float64 `json:"total_with_interest"`
	DaysAccrued       int     `json:"days_accrued"`
	LastCalculated    string  `json:"last_calculated"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

type ContractRequest struct {
	DebtorID      string  `json:"debtor_id"`
	Amount        float64 `json:"amount"`
	Frequency     string  `json:"frequency"` // "daily", "weekly", "biweekly", "monthly"
	StartDate     string  `json:"start_date,omitempty"`
	TotalPayments int     `json:"total_payments"`
	AutoExecute   bool    `json:"auto_execute"`
}

type ContractDTO struct {
	ID                string  `json:"id"`
	DebtorID          string  `json:"debtor_id"`
	Amount            float64 `json:"amount"`
	Frequency         string  `json:"frequency"`
	StartDate         string  `json:"start_date"`
	TotalPayments     int     `json:"total_payments"`
	CompletedPayments int     `json:"completed_payments"`
	MissedPayments    int     `json:"missed_payments"`
	NextPaymentDate   string  `json:"next_payment_date"`
	AutoExecute       bool    `json:"auto_execute"`
	IsActive          bool    `json:"is_active"`
}

// =============================================================================
// INCENTIVES
// =============================================================================

type IncentiveRuleRequest struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"` // "percentage" or "fixed"
	Value         float64  `json:"value"`
	MinDaysEarly  int      `json:"min_days_early"`
	MinDebtAmount *float64 `json:"min_debt_amount,omitempty"`
}

type ApplyIncentiveRequest struct {
	DebtorID      string  `json:"debtor_id"`
	RuleID        string  `json:"rule_id"`
	PaymentAmount float64 `json:"payment_amount"`
	DaysEarly     int     `json:"days_early"`
}

type IncentiveRuleDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Value         float64  `json:"value"`
	MinDaysEarly  int      `json:"min_days_early"`
	MinDebtAmount *float64 `json:"min_debt_amount,omitempty"`
	IsActive      bool     `json:"is_active"`
}

type IncentiveApplicationDTO struct {
	ID             string  `json:"id"`
	DebtorID       string  `json:"debtor_id"`
	RuleID         string  `json:"rule_id"`
	RuleName       string  `json:"rule_name"`
	OriginalAmount float64 `json:"original_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
	DaysEarly      int     `json:"days_early"`
	Paid           bool    `json:"paid"`
}

// =============================================================================
// SPLITS
// =============================================================================

type SplitPartyRequest struct {
	DebtorID   string   `json:"debtor_id"`
	SplitType  string   `json:"split_type"` // "equal", "percentage", "fixed"
	Amount     *float64 `json:"amount,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

type SplitRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	TotalAmount float64             `json:"total_amount"`
	Parties     []SplitPartyRequest `json:"parties"`
}

type SplitPartyDTO struct {
	DebtorID   string   `json:"debtor_id"`
	SplitType  string   `json:"split_type"`
	Amount     *float64 `json:"amount,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Resolved   float64  `json:"resolved"`
}

type SplitDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	TotalAmount float64         `json:"total_amount"`
	Parties     []SplitPartyDTO `json:"parties"`
	IsSettled   bool            `json:"is_settled"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDebtorDTO(d *ledger.Debtor) DebtorDTO {
	dto := DebtorDTO{
		ID:           string(d.ID),
		Name:         d.Name,
		Nickname:     d.Nickname,
		Phone:        d.Phone,
		Address:      d.Address,
		TotalDebt:    d.TotalDebt.Float64(),
		IsLocked:     d.IsLocked,
		LockedReason: d.LockedReason,
		Transactions: make([]TransactionDTO, len(d.Transactions)),
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
	if d.LockedAt != nil {
		dto.LockedAt = d.LockedAt.Format(time.RFC3339)
	}
	if d.DebtLimit != nil {
		v := d.DebtLimit.Float64()
		dto.DebtLimit = &v
	}
	dto.InterestRate = d.InterestRate
	for _, due := range d.PaymentSchedule {
		dto.PaymentSchedule = append(dto.PaymentSchedule, due.Format("2006-01-02"))
	}
	for i, tx := range d.Transactions {
		dto.Transactions[i] = toTransactionDTO(tx)
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	edits := 0
	for _, h := range tx.History {
		if h.Action == ledger.HistoryEdited {
			edits++
		}
	}
	return TransactionDTO{
		ID:               string(tx.ID),
		Amount:           tx.Amount.Float64(),
		Type:             string(tx.Type),
		Date:             tx.Date.Format(time.RFC3339),
		Description:      tx.Description,
		Tags:             tx.Tags,
		IsLocked:         tx.IsLocked,
		IsPartialPayment: tx.IsPartialPayment,
		PartialPaymentOf: string(tx.PartialPaymentOf),
		EditCount:        edits,
	}
}

func toInterestRuleDTO(r interest.Rule) InterestRuleDTO {
	dto := InterestRuleDTO{
		ID:             r.ID,
		Name:           r.Name,
		Rate:           r.Rate,
		Type:           string(r.Type),
		Frequency:      string(r.Frequency),
		ApplyAfterDays: r.ApplyAfterDays,
		IsActive:       r.IsActive,
	}
	if r.MinAmount != nil {
		v := r.MinAmount.Float64()
		dto.MinAmount = &v
	}
	if r.MaxAmount != nil {
		v := r.MaxAmount.Float64()
		dto.MaxAmount = &v
	}
	return dto
}

func toBindingDTO(b interest.Binding) BindingDTO {
	return BindingDTO{
		ID:                b.ID,
		DebtorID:          string(b.DebtorID),
		RuleID:            b.RuleID,
		BaseAmount:        b.BaseAmount.Float64(),
		CurrentInterest:   b.CurrentInterest.Float64(),
		TotalWithInterest: b.TotalWithInterest.Float64(),
		DaysAccrued:       b.DaysAccrued,
		LastCalculated:    b.LastCalculated.Format(time.RFC3339),
	}
}

func toContractDTO(c contract.Contract) ContractDTO {
	return ContractDTO{
		ID:                c.ID,
		DebtorID:          string(c.DebtorID),
		Amount:            c.Amount.Float64(),
		Frequency:         string(c.Frequency),
		StartDate:         c.StartDate.Format("2006-01-02"),
		TotalPayments:     c.TotalPayments,
		CompletedPayments: c.CompletedPayments,
		MissedPayments:    c.MissedPayments,
		NextPaymentDate:   c.NextPaymentDate.Format("2006-01-02"),
		AutoExecute:       c.AutoExecute,
		IsActive:          c.IsActive,
	}
}

func toIncentiveRuleDTO(r incentive.Rule) IncentiveRuleDTO {
	dto := IncentiveRuleDTO{
		ID:           r.ID,
		Name:         r.Name,
		Type:         string(r.Type),
		Value:        r.Value,
		MinDaysEarly: r.MinDaysEarly,
		IsActive:     r.IsActive,
	}
	if r.MinDebtAmount != nil {
		v := r.MinDebtAmount.Float64()
		dto.MinDebtAmount = &v
	}
	return dto
}

func toIncentiveApplicationDTO(a incentive.Application) IncentiveApplicationDTO {
	return IncentiveApplicationDTO{
		ID:             a.ID,
		DebtorID:       string(a.DebtorID),
		RuleID:         a.RuleID,
		RuleName:       a.RuleName,
		OriginalAmount: a.OriginalAmount.Float64(),
		DiscountAmount: a.DiscountAmount.Float64(),
		FinalAmount:    a.FinalAmount.Float64(),
		DaysEarly:      a.DaysEarly,
		Paid:           a.Paid,
	}
}

func toSplitDTO(s split.MultiPartyDebt) SplitDTO {
	dto := SplitDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		TotalAmount: s.TotalAmount.Float64(),
		Parties:     make([]SplitPartyDTO, len(s.Parties)),
		IsSettled:   s.IsSettled,
	}
	for i, p := range s.Parties {
		pd := SplitPartyDTO{
			DebtorID:   string(p.DebtorID),
			SplitType:  string(p.SplitType),
			Percentage: p.Percentage,
			Resolved:   p.Resolved.Float64(),
		}
		if p.Amount != nil {
			v := p.Amount.Float64()
			pd.Amount = &v
		}
		dto.Parties[i] = pd
	}
	return dto
}
