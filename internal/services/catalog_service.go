package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"despesas/internal/core"
)

// CatalogRepository stores categories and payment methods.
type CatalogRepository interface {
	CreateCategory(ctx context.Context, name string) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id int64) error
}

// CatalogService manages the reference data expenses point at. Names are
// unique; the store reports duplicates and references still in use.
type CatalogService struct {
	repo CatalogRepository
}

func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	created, err := s.repo.CreateCategory(ctx, c.Name)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "category_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id)
	return nil
}

func (s *CatalogService) CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	p := core.PaymentMethod{Name: strings.TrimSpace(name)}
	if err := p.Validate(); err != nil {
		return core.PaymentMethod{}, invalid(err)
	}
	created, err := s.repo.CreatePaymentMethod(ctx, p.Name)
	if err != nil {
		return core.PaymentMethod{}, err
	}
	slog.InfoContext(ctx, "Payment method created", "payment_method_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *CatalogService) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

func (s *CatalogService) DeletePaymentMethod(ctx context.Context, id int64) error {
	if err := s.repo.DeletePaymentMethod(ctx, id); err != nil {
		return fmt.Errorf("payment method: %w", err)
	}
	slog.InfoContext(ctx, "Payment method deleted", "payment_method_id", id)
	return nil
}

// RecurrenceTypes returns the static classification catalog.
func (s *CatalogService) RecurrenceTypes() []core.RecurrenceType {
	return core.RecurrenceTypes()
}
