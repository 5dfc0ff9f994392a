package costs

import (
	"time"

	"demeter/internal/domain/budget"
	"demeter/internal/domain/cost"
)

type typeTotalDTO struct {
	CostType      string `json:"cost_type"`
	TotalCostUSD  string `json:"total_cost_usd"`
	TotalQuantity int64  `json:"total_quantity"`
	RequestCount  int64  `json:"request_count"`
	Percentage    string `json:"percentage"`
}

type summaryDTO struct {
	StartDate         string         `json:"start_date"`
	EndDate           string         `json:"end_date"`
	TotalCostUSD      string         `json:"total_cost_usd"`
	RequestCount      int64          `json:"request_count"`
	ByType            []typeTotalDTO `json:"by_type"`
	DataAvailableFrom string         `json:"data_available_from,omitempty"`
}

func summaryResponse(s *cost.Summary) summaryDTO {
	byType := make([]typeTotalDTO, 0, len(s.ByType))
	for _, t := range s.ByType {
		byType = append(byType, typeTotalDTO{
			CostType:      t.CostType.String(),
			TotalCostUSD:  t.TotalCostUSD.StringFixed(6),
			TotalQuantity: t.TotalQuantity,
			RequestCount:  t.RequestCount,
			Percentage:    t.Percentage.StringFixed(2),
		})
	}
	return summaryDTO{
		StartDate:         formatDate(s.StartDate),
		EndDate:           formatDate(s.EndDate),
		TotalCostUSD:      s.TotalCostUSD.StringFixed(6),
		RequestCount:      s.RequestCount,
		ByType:            byType,
		DataAvailableFrom: formatDatePtr(s.DataAvailableFrom),
	}
}

type typeSliceDTO struct {
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	CostType          string `json:"cost_type"`
	TotalCostUSD      string `json:"total_cost_usd"`
	TotalQuantity     int64  `json:"total_quantity"`
	RequestCount      int64  `json:"request_count"`
	Percentage        string `json:"percentage"`
	DataAvailableFrom string `json:"data_available_from,omitempty"`
}

// typeSliceResponse extracts one cost type's slice of a summary. Summaries
// are zero-filled over all types, so the slice is always present.
func typeSliceResponse(s *cost.Summary, costType cost.Type) typeSliceDTO {
	dto := typeSliceDTO{
		StartDate:         formatDate(s.StartDate),
		EndDate:           formatDate(s.EndDate),
		CostType:          costType.String(),
		TotalCostUSD:      "0.000000",
		Percentage:        "0.00",
		DataAvailableFrom: formatDatePtr(s.DataAvailableFrom),
	}
	for _, t := range s.ByType {
		if t.CostType == costType {
			dto.TotalCostUSD = t.TotalCostUSD.StringFixed(6)
			dto.TotalQuantity = t.TotalQuantity
			dto.RequestCount = t.RequestCount
			dto.Percentage = t.Percentage.StringFixed(2)
			break
		}
	}
	return dto
}

type trendEntryDTO struct {
	Date         string `json:"date"`
	TotalCostUSD string `json:"total_cost_usd"`
	RequestCount int64  `json:"request_count"`
}

type trendDTO struct {
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
	Entries           []trendEntryDTO `json:"entries"`
	DataAvailableFrom string          `json:"data_available_from,omitempty"`
}

func trendResponse(t *cost.Trend, start, end time.Time) trendDTO {
	entries := make([]trendEntryDTO, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, trendEntryDTO{
			Date:         formatDate(e.Date),
			TotalCostUSD: e.TotalCostUSD.StringFixed(6),
			RequestCount: e.RequestCount,
		})
	}
	return trendDTO{
		StartDate:         formatDate(start),
		EndDate:           formatDate(end),
		Entries:           entries,
		DataAvailableFrom: formatDatePtr(t.DataAvailableFrom),
	}
}

type dimensionTotalDTO struct {
	Value         string `json:"value"`
	TotalCostUSD  string `json:"total_cost_usd"`
	TotalQuantity int64  `json:"total_quantity"`
	RequestCount  int64  `json:"request_count"`
	Percentage    string `json:"percentage"`
}

type breakdownDTO struct {
	StartDate         string              `json:"start_date"`
	EndDate           string              `json:"end_date"`
	CostType          string              `json:"cost_type"`
	DimensionKey      string              `json:"dimension_key"`
	TotalCostUSD      string              `json:"total_cost_usd"`
	Totals            []dimensionTotalDTO `json:"totals"`
	DataAvailableFrom string              `json:"data_available_from,omitempty"`
}

func breakdownResponse(b *cost.DimensionBreakdown) breakdownDTO {
	totals := make([]dimensionTotalDTO, 0, len(b.Totals))
	for _, t := range b.Totals {
		totals = append(totals, dimensionTotalDTO{
			Value:         t.Value,
			TotalCostUSD:  t.TotalCostUSD.StringFixed(6),
			TotalQuantity: t.TotalQuantity,
			RequestCount:  t.RequestCount,
			Percentage:    t.Percentage.StringFixed(2),
		})
	}
	return breakdownDTO{
		StartDate:         formatDate(b.StartDate),
		EndDate:           formatDate(b.EndDate),
		CostType:          b.CostType.String(),
		DimensionKey:      b.DimensionKey,
		TotalCostUSD:      b.TotalCostUSD.StringFixed(6),
		Totals:            totals,
		DataAvailableFrom: formatDatePtr(b.DataAvailableFrom),
	}
}

type periodStatusDTO struct {
	PeriodStart    string `json:"period_start"`
	TotalCostUSD   string `json:"total_cost_usd"`
	ThresholdUSD   string `json:"threshold_usd"`
	UtilizationPct string `json:"utilization_pct"`
	DisplayPct     string `json:"display_pct"`
	RemainingUSD   string `json:"remaining_usd"`
	AlertTriggered bool   `json:"alert_triggered"`
}

type budgetStatusDTO struct {
	Date          string          `json:"date"`
	Daily         periodStatusDTO `json:"daily"`
	Monthly       periodStatusDTO `json:"monthly"`
	UsingDefaults bool            `json:"using_defaults"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func periodStatusResponse(ps budget.PeriodStatus) periodStatusDTO {
	return periodStatusDTO{
		PeriodStart:    formatDate(ps.PeriodStart),
		TotalCostUSD:   ps.TotalCostUSD.StringFixed(6),
		ThresholdUSD:   ps.ThresholdUSD.StringFixed(2),
		UtilizationPct: ps.UtilizationPct.StringFixed(1),
		DisplayPct:     ps.DisplayPct.StringFixed(1),
		RemainingUSD:   ps.RemainingUSD.StringFixed(6),
		AlertTriggered: ps.AlertTriggered,
	}
}

func budgetStatusResponse(s *budget.Status) budgetStatusDTO {
	return budgetStatusDTO{
		Date:          formatDate(s.Date),
		Daily:         periodStatusResponse(s.Daily),
		Monthly:       periodStatusResponse(s.Monthly),
		UsingDefaults: s.UsingDefaults,
		UpdatedAt:     s.UpdatedAt,
	}
}

type thresholdRequest struct {
	DailyThresholdUSD   string `json:"daily_threshold_usd"`
	MonthlyThresholdUSD string `json:"monthly_threshold_usd"`
}

type thresholdDTO struct {
	DailyThresholdUSD   string    `json:"daily_threshold_usd"`
	MonthlyThresholdUSD string    `json:"monthly_threshold_usd"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func thresholdResponse(t *budget.Threshold) thresholdDTO {
	return thresholdDTO{
		DailyThresholdUSD:   t.DailyThresholdUSD.StringFixed(2),
		MonthlyThresholdUSD: t.MonthlyThresholdUSD.StringFixed(2),
		UpdatedAt:           t.UpdatedAt,
	}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}
