package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// CycleRecord is one persisted BrainCycleResult: summary columns for listing
// plus the full result as JSON.
type CycleRecord struct {
	OrganizationID string
	Timestamp      time.Time
	WindowStart    time.Time
	WindowEnd      time.Time
	RiskLevel      brain.RiskLevel
	RiskScore      int
	TotalSpend     decimal.Decimal
	TotalRevenue   decimal.Decimal
	BlendedROAS    decimal.Decimal
	OpportunityUSD decimal.Decimal
	ActionCount    int
	Payload        json.RawMessage
	CreatedAt      time.Time
}

// NewCycleRecord flattens a result for persistence.
func NewCycleRecord(result brain.CycleResult) (CycleRecord, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("marshal cycle result: %w", err)
	}
	totals := result.Memory.Totals
	return CycleRecord{
		OrganizationID: result.OrganizationID,
		Timestamp:      result.Timestamp.UTC(),
		WindowStart:    result.WindowStart.UTC(),
		WindowEnd:      result.WindowEnd.UTC(),
		RiskLevel:      result.Oracle.GlobalRiskLevel,
		RiskScore:      result.Oracle.GlobalRiskScore,
		TotalSpend:     decimal.NewFromFloat(totals.TotalSpend).Round(2),
		TotalRevenue:   decimal.NewFromFloat(totals.TotalRevenue).Round(2),
		BlendedROAS:    decimal.NewFromFloat(totals.BlendedROAS).Round(4),
		OpportunityUSD: decimal.NewFromFloat(result.Curiosity.TotalOpportunityUSD).Round(2),
		ActionCount:    len(result.Curiosity.TopActions),
		Payload:        payload,
	}, nil
}

// Result decodes the stored payload.
func (r CycleRecord) Result() (brain.CycleResult, error) {
	var result brain.CycleResult
	if err := json.Unmarshal(r.Payload, &result); err != nil {
		return brain.CycleResult{}, fmt.Errorf("decode cycle %s@%s: %w", r.OrganizationID, r.Timestamp.Format(time.RFC3339), err)
	}
	return result, nil
}

// setDecimals parses the NUMERIC summary columns read back as text.
func (r *CycleRecord) setDecimals(spend, revenue, roas, opportunity string) error {
	var err error
	if r.TotalSpend, err = decimal.NewFromString(spend); err != nil {
		return fmt.Errorf("parse total_spend: %w", err)
	}
	if r.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return fmt.Errorf("parse total_revenue: %w", err)
	}
	if r.BlendedROAS, err = decimal.NewFromString(roas); err != nil {
		return fmt.Errorf("parse blended_roas: %w", err)
	}
	if r.OpportunityUSD, err = decimal.NewFromString(opportunity); err != nil {
		return fmt.Errorf("parse opportunity_usd: %w", err)
	}
	return nil
}
