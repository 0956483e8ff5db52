package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/cee-quotes/internal/logger"
	"github.com/Simplici0/cee-quotes/internal/pricing"
	"github.com/Simplici0/cee-quotes/internal/store"
)

// Repository is the tenant-scoped persistence the service reads snapshots from.
type Repository interface {
	GetSettings(ctx context.Context, tenant, module string) (pricing.ModuleSettings, error)
	PutSettings(ctx context.Context, tenant, module string, settings pricing.ModuleSettings) error
	ListValuations(ctx context.Context, tenant string) ([]pricing.Valuation, error)
	UpsertValuation(ctx context.Context, tenant string, v pricing.Valuation) error
	ListProducts(ctx context.Context, tenant string) ([]pricing.Product, error)
	ProductsByID(ctx context.Context, tenant string, ids []int64) (map[int64]pricing.Product, error)
	CreateProduct(ctx context.Context, tenant string, p pricing.Product) (pricing.Product, error)
	ArchiveProduct(ctx context.Context, tenant string, id int64) error
	GetSizing(ctx context.Context, tenant string, folderID int64) (pricing.Sizing, error)
	PutSizing(ctx context.Context, tenant string, sizing pricing.Sizing) error
	GetDraft(ctx context.Context, tenant, id string) (store.Draft, error)
	ListDrafts(ctx context.Context, tenant string, folderID int64) ([]store.Draft, error)
	SaveDraft(ctx context.Context, tenant string, d store.Draft) (store.Draft, error)
	DeleteDraft(ctx context.Context, tenant, id string) error
}

// Service runs the pricing engine against tenant snapshots and manages drafts.
type Service struct {
	repo Repository
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// missing turns a store miss into a pricing not-found error; other errors pass through.
func missing(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", pricing.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

// snapshot loads the read-only tenant data a simulation needs.
func (s *Service) snapshot(ctx context.Context, tenant string, req pricing.Request) (pricing.Snapshot, error) {
	settings, err := s.repo.GetSettings(ctx, tenant, req.ModuleCode)
	if err != nil {
		return pricing.Snapshot{}, missing(err, "module %s is not configured", req.ModuleCode)
	}

	valuations, err := s.repo.ListValuations(ctx, tenant)
	if err != nil {
		return pricing.Snapshot{}, err
	}

	ids := make([]int64, 0, len(req.ProductIDs)+len(settings.DefaultLaborProductIDs))
	ids = append(ids, req.ProductIDs...)
	ids = append(ids, settings.DefaultLaborProductIDs...)
	products, err := s.repo.ProductsByID(ctx, tenant, ids)
	if err != nil {
		return pricing.Snapshot{}, err
	}

	snap := pricing.Snapshot{Settings: settings, Valuations: valuations, Products: products}
	sizing, err := s.repo.GetSizing(ctx, tenant, req.FolderID)
	switch {
	case err == nil:
		snap.Sizing = &sizing
	case !errors.Is(err, store.ErrNotFound):
		return pricing.Snapshot{}, err
	}
	return snap, nil
}

// Simulate prices a selection for a folder. Nothing is persisted.
func (s *Service) Simulate(ctx context.Context, tenant string, req pricing.Request) (pricing.Preview, error) {
	snap, err := s.snapshot(ctx, tenant, req)
	if err != nil {
		return pricing.Preview{}, err
	}

	preview, err := pricing.Simulate(req, snap)
	if err != nil {
		return pricing.Preview{}, err
	}

	logger.FromContext(ctx).Info("quote simulated",
		"tenant", tenant,
		"module", req.ModuleCode,
		"folder_id", req.FolderID,
		"strategy", preview.StrategyUsed,
		"warnings", len(preview.Warnings),
	)
	return preview, nil
}

// Reconcile applies one user edit to a preview held by the caller.
func (s *Service) Reconcile(preview pricing.Preview, edit pricing.Edit) (pricing.Preview, error) {
	return pricing.Reconcile(preview, edit)
}

// GetSettings returns the module configuration.
func (s *Service) GetSettings(ctx context.Context, tenant, module string) (pricing.ModuleSettings, error) {
	settings, err := s.repo.GetSettings(ctx, tenant, module)
	if err != nil {
		return pricing.ModuleSettings{}, missing(err, "module %s is not configured", module)
	}
	return settings, nil
}

// PutSettings replaces the module configuration.
func (s *Service) PutSettings(ctx context.Context, tenant, module string, settings pricing.ModuleSettings) (pricing.ModuleSettings, error) {
	if err := settings.Validate(); err != nil {
		return pricing.ModuleSettings{}, err
	}
	if err := s.repo.PutSettings(ctx, tenant, module, settings); err != nil {
		return pricing.ModuleSettings{}, err
	}
	logger.FromContext(ctx).Info("module settings replaced", "tenant", tenant, "module", module)
	return settings, nil
}

// PatchSettings merges the top-level fields present in patch into the module
// configuration, starting from defaults when the module is not configured yet.
func (s *Service) PatchSettings(ctx context.Context, tenant, module string, patch []byte) (pricing.ModuleSettings, error) {
	settings, err := s.repo.GetSettings(ctx, tenant, module)
	switch {
	case errors.Is(err, store.ErrNotFound):
		settings = pricing.DefaultSettings()
	case err != nil:
		return pricing.ModuleSettings{}, err
	}

	if err := json.Unmarshal(patch, &settings); err != nil {
		return pricing.ModuleSettings{}, fmt.Errorf("%w: invalid settings patch: %v", pricing.ErrValidation, err)
	}
	return s.PutSettings(ctx, tenant, module, settings)
}

// ListValuations returns the tenant's CEE valuations.
func (s *Service) ListValuations(ctx context.Context, tenant string) ([]pricing.Valuation, error) {
	return s.repo.ListValuations(ctx, tenant)
}

// UpsertValuation stores a valuation row.
func (s *Service) UpsertValuation(ctx context.Context, tenant string, v pricing.Valuation) (pricing.Valuation, error) {
	if err := v.Validate(); err != nil {
		return pricing.Valuation{}, err
	}
	if err := s.repo.UpsertValuation(ctx, tenant, v); err != nil {
		return pricing.Valuation{}, err
	}
	return v, nil
}

// ListProducts returns the tenant catalog.
func (s *Service) ListProducts(ctx context.Context, tenant string) ([]pricing.Product, error) {
	return s.repo.ListProducts(ctx, tenant)
}

// CreateProduct adds a catalog entry.
func (s *Service) CreateProduct(ctx context.Context, tenant string, p pricing.Product) (pricing.Product, error) {
	if err := p.Validate(); err != nil {
		return pricing.Product{}, err
	}
	return s.repo.CreateProduct(ctx, tenant, p)
}

// ArchiveProduct removes a product from future selections.
func (s *Service) ArchiveProduct(ctx context.Context, tenant string, id int64) error {
	if err := s.repo.ArchiveProduct(ctx, tenant, id); err != nil {
		return missing(err, "product %d", id)
	}
	return nil
}

// GetSizing returns the sizing snapshot of a folder.
func (s *Service) GetSizing(ctx context.Context, tenant string, folderID int64) (pricing.Sizing, error) {
	sizing, err := s.repo.GetSizing(ctx, tenant, folderID)
	if err != nil {
		return pricing.Sizing{}, missing(err, "no sizing for folder %d", folderID)
	}
	return sizing, nil
}

// PutSizing stores the sizing service output for a folder.
func (s *Service) PutSizing(ctx context.Context, tenant string, sizing pricing.Sizing) (pricing.Sizing, error) {
	if err := sizing.Validate(); err != nil {
		return pricing.Sizing{}, err
	}
	if err := s.repo.PutSizing(ctx, tenant, sizing); err != nil {
		return pricing.Sizing{}, err
	}
	return sizing, nil
}
