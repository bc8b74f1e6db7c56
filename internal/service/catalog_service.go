package service

import (
	"context"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	store  domain.CatalogStore
	logger *zerolog.Logger
}

func NewCatalogService(store domain.CatalogStore, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: orNop(logger)}
}

func (s *CatalogService) ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	return s.store.ListServices(ctx, activeOnly)
}

func (s *CatalogService) SaveService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	if svc.Name == "" {
		return nil, domain.Invalid("service name is required")
	}
	if err := s.store.UpsertService(ctx, svc); err != nil {
		return nil, err
	}
	s.logger.Info().Str("service_id", svc.ID).Int64("price_cents", svc.PriceCents).Msg("service saved")
	return svc, nil
}

func (s *CatalogService) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}
