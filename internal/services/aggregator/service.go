package aggregator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"demeter/internal/domain/cost"
	"demeter/internal/metrics"
	pkgerrors "demeter/pkg/errors"
	"demeter/pkg/logger"
)

// Service maintains daily cost aggregates and answers summary queries.
// It holds no in-process cache: every query reads persisted aggregates, so
// any replica can answer any query.
type Service struct {
	aggregates    cost.AggregateRepository
	location      *time.Location
	retentionDays int
	log           *logger.Logger
}

// NewService creates a new aggregator service. timezone is the IANA reference
// zone used for calendar-day bucketing; retentionDays bounds how far back
// aggregates are kept.
func NewService(aggregates cost.AggregateRepository, timezone string, retentionDays int) (*Service, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid aggregation timezone %q", timezone)
	}

	return &Service{
		aggregates:    aggregates,
		location:      loc,
		retentionDays: retentionDays,
		log:           logger.Get().With("component", "aggregator"),
	}, nil
}

// Record applies one cost event to the daily aggregates. Safe to retry: the
// base and dimension rows commit in one transaction.
func (s *Service) Record(ctx context.Context, event *cost.Event) error {
	date := s.DateOf(event.OccurredAt)

	start := time.Now()
	err := s.aggregates.Apply(ctx, date, event.Type, event.Dimensions(), event.AmountUSD, event.Quantity)
	metrics.AggregateApplyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return pkgerrors.Wrap(err, "failed to apply cost event")
	}

	s.log.Debugw("Cost event aggregated",
		"event_id", event.EventID,
		"cost_type", event.Type,
		"date", date.Format("2006-01-02"),
		"amount_usd", event.AmountUSD.String(),
	)

	return nil
}

// Summarize returns totals and a per-type breakdown for [startDate, endDate].
// Every known cost type appears in the breakdown, zero-filled when absent.
func (s *Service) Summarize(ctx context.Context, startDate, endDate time.Time) (*cost.Summary, error) {
	clamped, availableFrom, err := s.clampRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	summary := &cost.Summary{
		StartDate:         startDate,
		EndDate:           endDate,
		TotalCostUSD:      decimal.Zero,
		DataAvailableFrom: availableFrom,
	}

	if clamped == nil {
		// Entire range predates retention, nothing remains
		summary.ByType = zeroFilledTypeTotals(nil)
		return summary, nil
	}

	totals, err := s.aggregates.TotalsByType(ctx, clamped.start, clamped.end)
	if err != nil {
		return nil, err
	}

	grand := decimal.Zero
	var requests int64
	for _, t := range totals {
		grand = grand.Add(t.TotalCostUSD)
		requests += t.RequestCount
	}

	byType := zeroFilledTypeTotals(totals)
	for i := range byType {
		byType[i].Percentage = percentageOf(byType[i].TotalCostUSD, grand)
	}

	summary.TotalCostUSD = grand
	summary.RequestCount = requests
	summary.ByType = byType
	return summary, nil
}

// DailyTrend returns one entry per calendar day in [startDate, endDate],
// zero-filled for days without events so callers render contiguous charts.
func (s *Service) DailyTrend(ctx context.Context, startDate, endDate time.Time) (*cost.Trend, error) {
	clamped, availableFrom, err := s.clampRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	trend := &cost.Trend{
		Entries:           []cost.TrendEntry{},
		DataAvailableFrom: availableFrom,
	}

	if clamped == nil {
		return trend, nil
	}

	rows, err := s.aggregates.DailyTotals(ctx, clamped.start, clamped.end)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]cost.TrendEntry, len(rows))
	for _, row := range rows {
		byDate[row.Date.Format("2006-01-02")] = row
	}

	for d := clamped.start; !d.After(clamped.end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if row, ok := byDate[key]; ok {
			trend.Entries = append(trend.Entries, cost.TrendEntry{
				Date:         d,
				TotalCostUSD: row.TotalCostUSD,
				RequestCount: row.RequestCount,
			})
			continue
		}
		trend.Entries = append(trend.Entries, cost.TrendEntry{
			Date:         d,
			TotalCostUSD: decimal.Zero,
		})
	}

	return trend, nil
}

// BreakdownByDimension returns per-value totals for one cost type and
// dimension key over [startDate, endDate].
func (s *Service) BreakdownByDimension(ctx context.Context, costType cost.Type, dimKey string, startDate, endDate time.Time) (*cost.DimensionBreakdown, error) {
	if !costType.Valid() {
		return nil, pkgerrors.NewValidationError("cost_type", "unknown cost type", costType)
	}
	switch dimKey {
	case cost.DimensionAgentType, cost.DimensionModel, cost.DimensionKnowledgeDomain:
	default:
		return nil, pkgerrors.NewValidationError("dimension", "unknown dimension key", dimKey)
	}

	clamped, availableFrom, err := s.clampRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	breakdown := &cost.DimensionBreakdown{
		CostType:          costType,
		DimensionKey:      dimKey,
		StartDate:         startDate,
		EndDate:           endDate,
		TotalCostUSD:      decimal.Zero,
		Totals:            []cost.DimensionTotal{},
		DataAvailableFrom: availableFrom,
	}

	if clamped == nil {
		return breakdown, nil
	}

	totals, err := s.aggregates.TotalsByDimension(ctx, costType, dimKey, clamped.start, clamped.end)
	if err != nil {
		return nil, err
	}

	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.TotalCostUSD)
	}
	for i := range totals {
		totals[i].Percentage = percentageOf(totals[i].TotalCostUSD, grand)
	}

	breakdown.TotalCostUSD = grand
	breakdown.Totals = totals
	return breakdown, nil
}

// CurrentDayCost summarizes today's spend in the reference timezone
func (s *Service) CurrentDayCost(ctx context.Context) (*cost.Summary, error) {
	today := s.Today()
	return s.Summarize(ctx, today, today)
}

// RangeTotal returns the grand total and request count for [startDate, endDate]
func (s *Service) RangeTotal(ctx context.Context, startDate, endDate time.Time) (decimal.Decimal, int64, error) {
	return s.aggregates.RangeTotal(ctx, startDate, endDate)
}

// Today returns the current calendar date in the reference timezone
func (s *Service) Today() time.Time {
	return s.DateOf(time.Now())
}

// DateOf buckets a timestamp into its calendar date in the reference timezone
func (s *Service) DateOf(t time.Time) time.Time {
	local := t.In(s.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStartOf returns the first day of the month containing date
func (s *Service) MonthStartOf(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EarliestRetainedDate is the oldest aggregate date the retention policy keeps
func (s *Service) EarliestRetainedDate() time.Time {
	return s.Today().AddDate(0, 0, -s.retentionDays)
}

type dateRange struct {
	start time.Time
	end   time.Time
}

// clampRange validates the range and clips it to the retention window.
// A nil range with a non-nil marker means nothing of the range is retained.
func (s *Service) clampRange(startDate, endDate time.Time) (*dateRange, *time.Time, error) {
	if startDate.After(endDate) {
		return nil, nil, pkgerrors.Wrapf(pkgerrors.ErrInvalidRange,
			"start_date %s is after end_date %s",
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	}

	earliest := s.EarliestRetainedDate()
	if !startDate.Before(earliest) {
		return &dateRange{start: startDate, end: endDate}, nil, nil
	}

	if endDate.Before(earliest) {
		return nil, &earliest, nil
	}

	return &dateRange{start: earliest, end: endDate}, &earliest, nil
}

// zeroFilledTypeTotals returns one entry per known cost type, carrying the
// queried totals where present and zeros elsewhere
func zeroFilledTypeTotals(totals []cost.TypeTotal) []cost.TypeTotal {
	byType := make(map[cost.Type]cost.TypeTotal, len(totals))
	for _, t := range totals {
		byType[t.CostType] = t
	}

	out := make([]cost.TypeTotal, 0, len(cost.Types))
	for _, typ := range cost.Types {
		if t, ok := byType[typ]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, cost.TypeTotal{
			CostType:     typ,
			TotalCostUSD: decimal.Zero,
			Percentage:   decimal.Zero,
		})
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// percentageOf computes part/whole*100 rounded to two places, 0 when whole is 0
func percentageOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
