package service

import (
	"context"
	"errors"

	"billpos/internal/clock"
	"billpos/internal/dto"
	"billpos/internal/model"
	"billpos/internal/receipt"
	"billpos/internal/repository"
	"billpos/internal/settlement"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PeriodService manages trading periods. Bills can only be opened while a
// period is open, and a period only closes once all its bills are settled.
type PeriodService interface {
	Open(ctx context.Context) (*dto.PeriodResponse, error)
	Current(ctx context.Context) (*dto.PeriodResponse, error)
	List(ctx context.Context, limit int) ([]dto.PeriodResponse, error)
	Close(ctx context.Context, periodID uuid.UUID) (*dto.PeriodReportResponse, error)
	Report(ctx context.Context, periodID uuid.UUID) (*dto.PeriodReportResponse, error)
}

type periodService struct {
	store    repository.Store
	periods  repository.PeriodRepository
	bills    repository.BillRepository
	clock    clock.Clock
	settings ReceiptSettings
}

func NewPeriodService(store repository.Store, periods repository.PeriodRepository, bills repository.BillRepository, clk clock.Clock, settings ReceiptSettings) PeriodService {
	return &periodService{store: store, periods: periods, bills: bills, clock: clk, settings: settings}
}

func (s *periodService) toResponse(ctx context.Context, p *model.BillPeriod) (*dto.PeriodResponse, error) {
	resp := &dto.PeriodResponse{ID: p.ID.String(), OpenedAt: formatTime(p.OpenedAt)}
	if p.ClosedAt != nil {
		closed := formatTime(*p.ClosedAt)
		resp.ClosedAt = &closed
		return resp, nil
	}
	n, err := s.bills.CountOpen(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	resp.OpenBills = n
	return resp, nil
}

func (s *periodService) Open(ctx context.Context) (*dto.PeriodResponse, error) {
	if _, err := s.periods.FindOpen(ctx); err == nil {
		return nil, ErrPeriodOpen
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p := &model.BillPeriod{ID: uuid.New(), OpenedAt: s.clock.Now()}
	if err := s.store.Apply(ctx, repository.NewBatch().Create(p)); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPeriodOpen
		}
		return nil, err
	}
	log.Info().Str("period_id", p.ID.String()).Msg("bill period opened")
	return &dto.PeriodResponse{ID: p.ID.String(), OpenedAt: formatTime(p.OpenedAt)}, nil
}

func (s *periodService) Current(ctx context.Context) (*dto.PeriodResponse, error) {
	p, err := s.periods.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenPeriod
		}
		return nil, err
	}
	return s.toResponse(ctx, p)
}

func (s *periodService) List(ctx context.Context, limit int) ([]dto.PeriodResponse, error) {
	periods, err := s.periods.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		r, err := s.toResponse(ctx, &periods[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *periodService) Close(ctx context.Context, periodID uuid.UUID) (*dto.PeriodReportResponse, error) {
	p, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFound("period", periodID, err)
	}
	if p.ClosedAt != nil {
		return nil, ErrPeriodClosed
	}
	n, err := s.bills.CountOpen(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrOpenBills
	}

	now := s.clock.Now()
	p.ClosedAt = &now
	batch := repository.NewBatch().UpdateStrict(map[string]any{"closed_at": nil}, p, "ClosedAt")
	if err := s.store.Apply(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrPeriodClosed
		}
		return nil, err
	}
	log.Info().Str("period_id", p.ID.String()).Msg("bill period closed")
	return s.report(ctx, p)
}

func (s *periodService) Report(ctx context.Context, periodID uuid.UUID) (*dto.PeriodReportResponse, error) {
	p, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFound("period", periodID, err)
	}
	return s.report(ctx, p)
}

func (s *periodService) report(ctx context.Context, p *model.BillPeriod) (*dto.PeriodReportResponse, error) {
	bills, err := s.bills.ListByPeriod(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	totals := settlement.Period(bills)

	closedAt := s.clock.Now()
	if p.ClosedAt != nil {
		closedAt = *p.ClosedAt
	}
	period, err := s.toResponse(ctx, p)
	if err != nil {
		return nil, err
	}
	cmds := receipt.ComposePeriod(receipt.PeriodInput{
		Totals:   totals,
		Org:      s.settings.Org,
		Symbol:   s.settings.Symbol,
		Width:    s.settings.Width,
		OpenedAt: p.OpenedAt,
		ClosedAt: closedAt,
	})
	return &dto.PeriodReportResponse{Period: *period, Totals: totals, Lines: receipt.Lines(cmds)}, nil
}
