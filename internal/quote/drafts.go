package quote

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Simplici0/cee-quotes/internal/logger"
	"github.com/Simplici0/cee-quotes/internal/pricing"
	"github.com/Simplici0/cee-quotes/internal/store"
)

// DraftInput is the caller-provided content of a new or replaced draft.
type DraftInput struct {
	FolderID   int64            `json:"folder_id"`
	Name       string           `json:"name"`
	ModuleCode string           `json:"module_code"`
	ProductIDs []int64          `json:"product_ids"`
	Preview    *pricing.Preview `json:"preview,omitempty"`
}

// DraftPatch carries the fields of a partial draft update. Nil fields are kept.
type DraftPatch struct {
	Name       *string          `json:"name"`
	ModuleCode *string          `json:"module_code"`
	ProductIDs *[]int64         `json:"product_ids"`
	Preview    *pricing.Preview `json:"preview"`
}

func (in DraftInput) validate() error {
	if in.FolderID <= 0 {
		return fmt.Errorf("%w: folder_id is required", pricing.ErrValidation)
	}
	if strings.TrimSpace(in.ModuleCode) == "" {
		return errModuleRequired
	}
	return nil
}

var errModuleRequired = fmt.Errorf("%w: module_code is required", pricing.ErrValidation)

func errNotSimulated(id string) error {
	return fmt.Errorf("%w: draft %s has not been simulated yet", pricing.ErrValidation, id)
}

func (in DraftInput) draft(id string) (store.Draft, error) {
	preview, err := recomputed(in.Preview)
	if err != nil {
		return store.Draft{}, err
	}
	return store.Draft{
		ID:         id,
		FolderID:   in.FolderID,
		Name:       strings.TrimSpace(in.Name),
		ModuleCode: strings.TrimSpace(in.ModuleCode),
		ProductIDs: in.ProductIDs,
		Preview:    preview,
	}, nil
}

// recomputed re-prices a preview sent by a client before it is stored.
func recomputed(p *pricing.Preview) (*pricing.Preview, error) {
	if p == nil {
		return nil, nil
	}
	out, err := pricing.Recompute(*p)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDraft stores a new draft. It starts without a simulation unless the caller provides one.
func (s *Service) CreateDraft(ctx context.Context, tenant string, in DraftInput) (store.Draft, error) {
	if err := in.validate(); err != nil {
		return store.Draft{}, err
	}
	d, err := in.draft("")
	if err != nil {
		return store.Draft{}, err
	}
	d, err = s.repo.SaveDraft(ctx, tenant, d)
	if err != nil {
		return store.Draft{}, err
	}
	logger.FromContext(ctx).Info("quote draft created", "tenant", tenant, "draft_id", d.ID, "folder_id", d.FolderID)
	return d, nil
}

// UpsertDraft fully replaces the draft with id, creating it when absent.
// Concurrent writers are not merged: the last write wins.
func (s *Service) UpsertDraft(ctx context.Context, tenant, id string, in DraftInput) (store.Draft, error) {
	if err := in.validate(); err != nil {
		return store.Draft{}, err
	}
	d, err := in.draft(id)
	if err != nil {
		return store.Draft{}, err
	}
	d, err = s.repo.SaveDraft(ctx, tenant, d)
	if err != nil {
		return store.Draft{}, missing(err, "draft %s", id)
	}
	return d, nil
}

// GetDraft returns a draft.
func (s *Service) GetDraft(ctx context.Context, tenant, id string) (store.Draft, error) {
	d, err := s.repo.GetDraft(ctx, tenant, id)
	if err != nil {
		return store.Draft{}, missing(err, "draft %s", id)
	}
	return d, nil
}

// ListDrafts returns the drafts of a folder.
func (s *Service) ListDrafts(ctx context.Context, tenant string, folderID int64) ([]store.Draft, error) {
	return s.repo.ListDrafts(ctx, tenant, folderID)
}

// UpdateDraft applies a partial update. Changing the module or the product
// selection re-simulates a draft that already holds a preview.
func (s *Service) UpdateDraft(ctx context.Context, tenant, id string, patch DraftPatch) (store.Draft, error) {
	d, err := s.GetDraft(ctx, tenant, id)
	if err != nil {
		return store.Draft{}, err
	}

	resimulate := false
	if patch.Name != nil {
		d.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.ModuleCode != nil && strings.TrimSpace(*patch.ModuleCode) != d.ModuleCode {
		if strings.TrimSpace(*patch.ModuleCode) == "" {
			return store.Draft{}, errModuleRequired
		}
		d.ModuleCode = strings.TrimSpace(*patch.ModuleCode)
		resimulate = true
	}
	if patch.ProductIDs != nil && !slices.Equal(*patch.ProductIDs, d.ProductIDs) {
		d.ProductIDs = *patch.ProductIDs
		resimulate = true
	}

	switch {
	case patch.Preview != nil:
		if d.Preview, err = recomputed(patch.Preview); err != nil {
			return store.Draft{}, err
		}
	case resimulate && d.Preview != nil:
		if len(d.ProductIDs) == 0 {
			d.Preview = nil
			break
		}
		preview, err := s.Simulate(ctx, tenant, draftRequest(d, nil))
		if err != nil {
			return store.Draft{}, err
		}
		d.Preview = &preview
	}

	return s.save(ctx, tenant, d)
}

// DeleteDraft removes a draft.
func (s *Service) DeleteDraft(ctx context.Context, tenant, id string) error {
	if err := s.repo.DeleteDraft(ctx, tenant, id); err != nil {
		return missing(err, "draft %s", id)
	}
	return nil
}

// SimulateDraft runs a fresh simulation for the draft selection and stores it,
// discarding previous overrides.
func (s *Service) SimulateDraft(ctx context.Context, tenant, id string, targetRAC *float64) (store.Draft, error) {
	d, err := s.GetDraft(ctx, tenant, id)
	if err != nil {
		return store.Draft{}, err
	}

	preview, err := s.Simulate(ctx, tenant, draftRequest(d, targetRAC))
	if err != nil {
		return store.Draft{}, err
	}
	d.Preview = &preview
	return s.save(ctx, tenant, d)
}

// EditDraftLine applies a user override to the stored preview of a draft.
func (s *Service) EditDraftLine(ctx context.Context, tenant, id string, edit pricing.Edit) (store.Draft, error) {
	d, err := s.GetDraft(ctx, tenant, id)
	if err != nil {
		return store.Draft{}, err
	}
	if d.Preview == nil {
		return store.Draft{}, errNotSimulated(id)
	}

	preview, err := pricing.Reconcile(*d.Preview, edit)
	if err != nil {
		return store.Draft{}, err
	}
	d.Preview = &preview
	return s.save(ctx, tenant, d)
}

func (s *Service) save(ctx context.Context, tenant string, d store.Draft) (store.Draft, error) {
	saved, err := s.repo.SaveDraft(ctx, tenant, d)
	if err != nil {
		return store.Draft{}, missing(err, "draft %s", d.ID)
	}
	return saved, nil
}

func draftRequest(d store.Draft, targetRAC *float64) pricing.Request {
	return pricing.Request{
		ModuleCode: d.ModuleCode,
		FolderID:   d.FolderID,
		ProductIDs: d.ProductIDs,
		TargetRAC:  targetRAC,
	}
}
