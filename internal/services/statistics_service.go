package services

import (
	"context"

	"climate-records/internal/models"
	"climate-records/internal/query"
	"climate-records/internal/repository"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// totalShareColumn is the alias of the summed share in the ranking query.
const totalShareColumn = "total_temperature_change"

// StatisticsService handles aggregate views over the temperature records
type StatisticsService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RankCountries sums each country's share of temperature change from greenhouse gases over
// the requested period and returns the first num_countries entries ordered by that sum.
// Continent and region labels share the temperature table and are left out.
func (s *StatisticsService) RankCountries(ctx context.Context, p query.Params) ([]*models.CountryRanking, error) {
	period := query.NewPeriodSelector(query.TemperatureTable)
	number := query.NewNumberSelector()
	order := query.NewFixedOrder(totalShareColumn, query.TemperatureTable.Col("country")+" "+query.Asc)

	if err := query.Bind(p, period, number, order); err != nil {
		return nil, err
	}

	shares, err := s.repo.RankTemperatureShares(ctx, period, order)
	if err != nil {
		return nil, err
	}

	rankings := make([]*models.CountryRanking, 0, len(shares))
	for _, share := range shares {
		if share.ActualCountry == nil {
			continue
		}
		rankings = append(rankings, &models.CountryRanking{
			Name:                            *share.ActualCountry,
			ShareOfTemperatureChangeFromGHG: share.Total,
		})
	}

	if len(rankings) == 0 {
		s.metrics.RecordEmptyResult("countries")
		return rankings, nil
	}

	s.logger.Debug(ctx, "[STATS_RANK] Countries ranked", logging.Fields{
		"period_type":  period.PeriodType,
		"period_value": period.PeriodValue,
		"groups":       len(shares),
		"countries":    len(rankings),
		"order_dir":    order.Direction(),
	})

	return query.Truncate(number, rankings), nil
}
