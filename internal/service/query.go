package service

import (
	"context"
	"errors"

	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

// Paging limits of the administrative listing.
const (
	DefaultPageSize    = 20
	MaxPageSize        = 100
	DefaultExportLimit = 10000
)

// QueryService is the read-only administrative view over reservations.
type QueryService struct {
	reservations *repository.ReservationRepo
	exportLimit  int
}

// NewQueryService returns a QueryService refusing exports above
// exportLimit rows (DefaultExportLimit when <= 0).
func NewQueryService(reservations *repository.ReservationRepo, exportLimit int) *QueryService {
	if exportLimit <= 0 {
		exportLimit = DefaultExportLimit
	}
	return &QueryService{reservations: reservations, exportLimit: exportLimit}
}

// List returns one page of reservations matching f, newest first.
// Page is zero-based; a zero Size selects DefaultPageSize.
func (s *QueryService) List(ctx context.Context, f model.ReservationFilter, p model.PageRequest) (model.ReservationPage, error) {
	if err := validateFilter(f); err != nil {
		return model.ReservationPage{}, err
	}
	if p.Page < 0 {
		return model.ReservationPage{}, newError(KindInvalidRequest, "page must not be negative")
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return model.ReservationPage{}, newError(KindInvalidRequest, "size must be between 1 and %d", MaxPageSize)
	}

	total, err := s.reservations.Count(ctx, f)
	if err != nil {
		return model.ReservationPage{}, err
	}
	items := []model.Reservation{}
	if offset := p.Page * p.Size; offset < total {
		items, err = s.reservations.List(ctx, f, offset, p.Size)
		if err != nil {
			return model.ReservationPage{}, err
		}
	}
	return model.ReservationPage{Items: items, Page: p.Page, Size: p.Size, Total: total}, nil
}

// Export returns every reservation matching f for the reporting
// collaborator.  More than the export limit fails with TooManyRecords.
// The rows are read in one bounded query so the limit holds even when
// reservations are admitted while the export runs.
func (s *QueryService) Export(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	rows, err := s.reservations.List(ctx, f, 0, s.exportLimit+1)
	if err != nil {
		return nil, err
	}
	if len(rows) > s.exportLimit {
		return nil, newError(KindTooManyRecords,
			"more than %d reservations match; narrow the filter", s.exportLimit)
	}
	return rows, nil
}

// Get returns one reservation with its companions.
func (s *QueryService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "reservation %s not found", id)
	}
	return res, err
}

func validateFilter(f model.ReservationFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return newError(KindInvalidRequest, "unknown status %q", f.Status)
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return newError(KindInvalidRequest, "unknown visitor kind %q", f.Kind)
	}
	if f.Year < 0 {
		return newError(KindInvalidRequest, "year must not be negative")
	}
	return nil
}
