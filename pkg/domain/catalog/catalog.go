// Package catalog loads the departments and doctors the booking wizard
// offers.
package catalog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

// PageLimit is the list size requested from the store.
const PageLimit = 100

type Service struct {
	store  model.RecordStore
	logger zerolog.Logger
}

func New(store model.RecordStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// ActiveDepartments returns the active departments in store order.
func (s *Service) ActiveDepartments(ctx context.Context) ([]model.Department, error) {
	recs, err := s.list(ctx, model.CollectionDepartments, nil)
	if err != nil {
		return nil, err
	}
	all := decodeEach[model.Department](s, model.CollectionDepartments, recs)
	out := make([]model.Department, 0, len(all))
	for _, d := range all {
		if d.IsActive() {
			out = append(out, d)
		}
	}
	return out, nil
}

// ActiveDoctors returns the active doctors of one department in store order.
// The department filter is sent to the store and applied again here, since
// not every backend honours field filters.
func (s *Service) ActiveDoctors(ctx context.Context, departmentID string) ([]model.Doctor, error) {
	if departmentID == "" {
		return nil, errs.Validation("department is required")
	}
	recs, err := s.list(ctx, model.CollectionDoctors, url.Values{"department_id": {departmentID}})
	if err != nil {
		return nil, err
	}
	all := decodeEach[model.Doctor](s, model.CollectionDoctors, recs)
	out := make([]model.Doctor, 0, len(all))
	for _, d := range all {
		if d.DepartmentID == departmentID && d.IsActive() {
			out = append(out, d)
		}
	}
	return out, nil
}

// Doctor fetches one doctor by id.
func (s *Service) Doctor(ctx context.Context, id string) (model.Doctor, error) {
	rec, err := s.store.Get(ctx, model.CollectionDoctors, id)
	if err != nil {
		return model.Doctor{}, err
	}
	return model.Decode[model.Doctor](rec)
}

func (s *Service) list(ctx context.Context, collection string, params url.Values) ([]model.Record, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("limit", strconv.Itoa(PageLimit))

	recs, err := s.store.List(ctx, collection, params)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return []model.Record{}, nil
		}
		s.logger.Error().Err(err).Str("collection", collection).Msg("catalog load failed")
		return nil, err
	}
	return recs, nil
}

// decodeEach decodes recs, skipping the records that do not fit T.
func decodeEach[T any](s *Service, collection string, recs []model.Record) []T {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := model.Decode[T](rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("collection", collection).Str("id", rec.ID()).Msg("skipping malformed record")
			continue
		}
		out = append(out, v)
	}
	return out
}
