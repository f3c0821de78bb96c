package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// printResult writes a cycle either as indented JSON or as a short report.
func printResult(w io.Writer, result brain.CycleResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	totals := result.Memory.Totals
	fmt.Fprintf(w, "Organization: %s\n", result.OrganizationID)
	fmt.Fprintf(w, "Cycle:        %s (window %s .. %s)\n",
		result.Timestamp.UTC().Format(time.RFC3339),
		result.WindowStart.UTC().Format(time.DateOnly),
		result.WindowEnd.UTC().Format(time.DateOnly))
	fmt.Fprintf(w, "Spend:        $%s  Revenue: $%s  Blended ROAS: %s\n",
		money(totals.TotalSpend), money(totals.TotalRevenue), formatFloat(totals.BlendedROAS, 2))
	fmt.Fprintf(w, "Risk:         %s (%d/100)\n", result.Oracle.GlobalRiskLevel, result.Oracle.GlobalRiskScore)
	fmt.Fprintf(w, "Opportunity:  $%s from %d candidates\n",
		money(result.Curiosity.TotalOpportunityUSD), result.Curiosity.CandidateCount)

	if len(result.Memory.Channels) > 0 {
		fmt.Fprintln(w)
		writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Channel\tSpend\tRevenue\tROAS\tStatus\tTrend\tShare%")
		for _, ch := range result.Memory.Channels {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				sanitizeInline(ch.Name), money(ch.Spend), money(ch.Revenue), formatFloat(ch.ROAS, 2),
				ch.Status, ch.Trend, formatFloat(ch.ContributionPct, 1))
		}
		writer.Flush()
	}

	if len(result.Oracle.LegacyRisks) > 0 {
		fmt.Fprintln(w)
		writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Risk\tEntity\tSeverity\tScore\tMessage")
		for _, r := range result.Oracle.LegacyRisks {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
				r.Type, r.EntityID, r.Severity, formatFloat(r.Score, 3), sanitizeInline(r.Message))
		}
		writer.Flush()
	}

	if len(result.Curiosity.TopActions) > 0 {
		fmt.Fprintln(w)
		for i, action := range result.Curiosity.TopActions {
			fmt.Fprintf(w, "%d. [%s] %s (score %s, impact $%s, urgency %s, confidence %s)\n",
				i+1, action.Type, action.Title, formatFloat(action.Score, 1), money(action.EstimatedImpactUSD),
				action.Urgency, action.Confidence)
			fmt.Fprintf(w, "   exec:    %s\n", action.Renderings.Executive)
			fmt.Fprintf(w, "   analyst: %s\n", action.Renderings.Analyst)
			fmt.Fprintf(w, "   do:      %s\n", action.Renderings.Imperative)
		}
	}

	failures := append(append([]brain.ComponentFailure(nil), result.Oracle.Failures...), result.Curiosity.Failures...)
	if len(failures) > 0 {
		fmt.Fprintln(w)
		for _, f := range failures {
			fmt.Fprintf(w, "! %s failed: %s\n", f.Component, sanitizeInline(f.Message))
		}
	}
	return nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
