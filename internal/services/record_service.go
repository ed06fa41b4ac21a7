package services

import (
	"context"
	"errors"
	"strconv"

	"climate-records/internal/models"
	"climate-records/internal/query"
	"climate-records/internal/repository"
	"climate-records/internal/validation"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// GeneralOrderColumns are the general record columns a list may be sorted by.
var GeneralOrderColumns = []string{"year", "gdp", "population"}

// RecordService handles the record endpoints: every operation runs the country guard where a
// country is involved, validates its input, assembles the query and executes it.
type RecordService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRecordService creates a new record service
func NewRecordService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RecordService {
	return &RecordService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ResolveCountry is the existence guard. It returns the canonical name for a country name or
// ISO code, CountryNotFoundError when nothing matches and InvalidReferenceError when an ISO
// code matches several countries.
func (s *RecordService) ResolveCountry(ctx context.Context, p query.Params) (string, error) {
	sel := query.NewCountrySelector(query.CountryTable)
	if err := query.Bind(p, sel); err != nil {
		return "", err
	}

	names, err := s.repo.ResolveCountries(ctx, sel)
	if err != nil {
		return "", err
	}

	switch len(names) {
	case 0:
		return "", &models.CountryNotFoundError{Country: sel.Country}
	case 1:
		return names[0], nil
	default:
		s.logger.Warn(ctx, "[GUARD_AMBIGUOUS] ISO code matches several countries", logging.Fields{
			"iso_code":  sel.Country,
			"countries": names,
		})
		return "", &models.InvalidReferenceError{Kind: "country", Value: sel.Country}
	}
}

// CreateGeneralRecord stores a new general record under the canonical country name.
func (s *RecordService) CreateGeneralRecord(ctx context.Context, input *models.GeneralRecordInput) (*models.GeneralRecord, error) {
	country, err := s.ResolveCountry(ctx, query.Values{"country": input.Country})
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}

	key, err := query.Compose(query.Values{"country": country, "year": strconv.Itoa(input.Year)},
		query.NewCountrySelector(query.GeneralTable),
		query.NewYearSelector(query.GeneralTable),
	)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.CountGeneral(ctx, key...)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &models.ConflictError{Resource: "general record", ID: country + "/" + strconv.Itoa(input.Year)}
	}

	rec := &models.GeneralRecord{
		Country:    country,
		Year:       input.Year,
		GDP:        input.GDP,
		Population: input.Population,
	}
	if err := s.repo.CreateGeneral(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[RECORD_CREATED] General record created", logging.Fields{
		"country": rec.Country,
		"year":    rec.Year,
	})
	return rec, nil
}

// GetGeneralRecord returns the general record addressed by country and year.
func (s *RecordService) GetGeneralRecord(ctx context.Context, p query.Params) (*models.GeneralRecord, error) {
	return s.findGeneral(ctx, p)
}

// UpdateGeneralRecord overwrites gdp and population. Absent values become NULL.
func (s *RecordService) UpdateGeneralRecord(ctx context.Context, p query.Params, input *models.GeneralRecordUpdate) (*models.GeneralRecord, error) {
	rec, err := s.findGeneral(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}

	rec.GDP = input.GDP
	rec.Population = input.Population
	if err := s.repo.UpdateGeneral(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteGeneralRecord removes the general record addressed by country and year.
func (s *RecordService) DeleteGeneralRecord(ctx context.Context, p query.Params) error {
	rec, err := s.findGeneral(ctx, p)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGeneral(ctx, rec.Country, rec.Year); err != nil {
		return err
	}

	s.logger.Info(ctx, "[RECORD_DELETED] General record deleted", logging.Fields{
		"country": rec.Country,
		"year":    rec.Year,
	})
	return nil
}

func (s *RecordService) findGeneral(ctx context.Context, p query.Params) (*models.GeneralRecord, error) {
	if _, err := s.ResolveCountry(ctx, p); err != nil {
		return nil, err
	}

	key, err := query.Compose(p,
		query.NewCountrySelector(query.GeneralTable),
		query.NewYearSelector(query.GeneralTable),
	)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.FindOneGeneral(ctx, key...)
	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		return nil, &models.NotFoundError{Resource: "general record", ID: p.Get("country") + "/" + p.Get("year")}
	}
	return rec, err
}

// ListGeneralRecords lists the general records of one country from an optional year onward.
func (s *RecordService) ListGeneralRecords(ctx context.Context, p query.Params) ([]*models.GeneralRecord, error) {
	if _, err := s.ResolveCountry(ctx, p); err != nil {
		return nil, err
	}

	helpers, err := query.Compose(p,
		query.NewCountrySelector(query.GeneralTable),
		query.NewYearFilter(query.GeneralTable),
		query.NewOrder(query.GeneralTable, GeneralOrderColumns...),
		query.NewPaging(),
	)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.FindGeneral(ctx, helpers...)
	if err != nil {
		return nil, err
	}
	s.countEmpty(string(query.GeneralTable), len(records))
	return records, nil
}

// ListEmissionRecords lists the emission records of one country from an optional year onward.
func (s *RecordService) ListEmissionRecords(ctx context.Context, p query.Params) ([]*models.EmissionRecord, error) {
	if _, err := s.ResolveCountry(ctx, p); err != nil {
		return nil, err
	}

	helpers, err := query.Compose(p,
		query.NewCountrySelector(query.EmissionTable),
		query.NewYearFilter(query.EmissionTable),
	)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.FindEmissions(ctx, helpers...)
	if err != nil {
		return nil, err
	}
	s.countEmpty(string(query.EmissionTable), len(records))
	return records, nil
}

// ListTemperatureRecords lists the temperature records of one continent from an optional year onward.
func (s *RecordService) ListTemperatureRecords(ctx context.Context, p query.Params) ([]*models.TemperatureRecord, error) {
	helpers, err := query.Compose(p,
		query.NewContinentSelector(query.TemperatureTable),
		query.NewYearFilter(query.TemperatureTable),
	)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.FindTemperatures(ctx, helpers...)
	if err != nil {
		return nil, err
	}
	s.countEmpty(string(query.TemperatureTable), len(records))
	return records, nil
}

// ListEnergyRecords returns one batch of the energy records of a year, ordered by population.
func (s *RecordService) ListEnergyRecords(ctx context.Context, p query.Params) ([]*models.EnergyRecord, error) {
	helpers, err := query.Compose(p,
		query.NewYearSelector(query.EnergyTable),
		query.NewEnergyPopulationOrder(),
		query.NewBatcher(),
	)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.FindEnergy(ctx, helpers...)
	if err != nil {
		return nil, err
	}
	s.countEmpty(string(query.EnergyTable), len(records))
	return records, nil
}

// HealthCheck checks the backing store
func (s *RecordService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func (s *RecordService) countEmpty(collection string, n int) {
	if n == 0 {
		s.metrics.RecordEmptyResult(collection)
	}
}
