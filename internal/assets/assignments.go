package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateAsset registers a new asset. Every asset outside a consumable
// category needs an asset tag; an employee puts the asset in use straight away.
func (s *Service) CreateAsset(ctx context.Context, input AssetInput) (Asset, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Model = strings.TrimSpace(input.Model)
	input.AssetTag = strings.TrimSpace(input.AssetTag)
	input.Employee = strings.TrimSpace(input.Employee)
	if err := s.validate.Struct(input); err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	consumable := false
	if input.CategoryID != nil {
		cat, err := s.repo.GetCategory(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Asset{}, fmt.Errorf("category %d: %w", *input.CategoryID, ErrNotFound)
			}
			return Asset{}, err
		}
		consumable = cat.IsConsumable
	}
	if input.AssetTag == "" && !consumable {
		return Asset{}, ErrAssetTagRequired
	}
	if consumable && input.Employee != "" {
		return Asset{}, ErrConsumableAssignment
	}

	assetType := input.AssetType
	if assetType == "" {
		assetType = AssetTypeIT
	}
	id, err := s.repo.CreateAsset(ctx, Asset{
		Name:       input.Name,
		Model:      input.Model,
		AssetTag:   input.AssetTag,
		CategoryID: input.CategoryID,
		AssetType:  assetType,
		State:      StateForEmployee(StateAvailable, input.Employee),
		Condition:  ConditionGood,
		Employee:   input.Employee,
	})
	if err != nil {
		return Asset{}, err
	}
	asset, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, fmt.Errorf("reload asset %d: %w", id, err)
	}
	s.recordChange(ctx, asset.ID, "asset_created", fmt.Sprintf("Asset %s registered", asset.Name))
	return asset, nil
}

// AssignAsset hands an asset to an employee and opens an assignment entry.
// Consumables cannot be assigned.
func (s *Service) AssignAsset(ctx context.Context, input AssignmentInput) (Assignment, error) {
	input.Employee = strings.TrimSpace(input.Employee)
	input.Notes = strings.TrimSpace(input.Notes)
	if err := s.validate.Struct(input); err != nil {
		return Assignment{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	asset, err := s.asset(ctx, input.AssetID)
	if err != nil {
		return Assignment{}, err
	}
	if asset.IsConsumable {
		return Assignment{}, ErrConsumableAssignment
	}
	stored, err := s.repo.AssignAsset(ctx, Assignment{
		AssetID:    input.AssetID,
		Employee:   input.Employee,
		AssignedOn: s.dayOr(input.Date),
		Notes:      input.Notes,
		State:      LoanActive,
	})
	if err != nil {
		return Assignment{}, err
	}
	s.recordChange(ctx, asset.ID, "assignment",
		fmt.Sprintf("%s assigned to %s", asset.Name, stored.Employee))
	return stored, nil
}

// ReturnAssignment closes an assignment today. An asset still held by the
// assignment's employee is released and becomes available.
func (s *Service) ReturnAssignment(ctx context.Context, id int64) (Assignment, error) {
	if id <= 0 {
		return Assignment{}, fmt.Errorf("%w: assignment id must be positive", ErrInvalidAsset)
	}
	a, asset, err := s.repo.ReturnAssignment(ctx, id, s.dayOr(time.Time{}))
	if err != nil {
		return Assignment{}, err
	}
	s.recordChange(ctx, asset.ID, "assignment_return",
		fmt.Sprintf("%s returned by %s", a.AssetName, a.Employee))
	return a, nil
}

// ListAssignments lists the assignment history of an asset.
func (s *Service) ListAssignments(ctx context.Context, assetID int64, page Page) ([]Assignment, error) {
	if _, err := s.asset(ctx, assetID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAssignments(ctx, assetID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// SwapAsset installs an asset in a fleet unit and opens a swap entry.
func (s *Service) SwapAsset(ctx context.Context, input SwapInput) (Swap, error) {
	input.Notes = strings.TrimSpace(input.Notes)
	if err := s.validate.Struct(input); err != nil {
		return Swap{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	asset, err := s.asset(ctx, input.AssetID)
	if err != nil {
		return Swap{}, err
	}
	stored, err := s.repo.SwapAsset(ctx, Swap{
		AssetID:   input.AssetID,
		UnitID:    input.UnitID,
		SwappedOn: s.dayOr(input.Date),
		Notes:     input.Notes,
		State:     LoanActive,
	})
	if err != nil {
		return Swap{}, err
	}
	s.recordChange(ctx, asset.ID, "swap",
		fmt.Sprintf("%s installed in %s", asset.Name, stored.UnitName))
	return stored, nil
}

// ReturnSwap closes a swap today. An asset still installed in the swap's unit
// is taken out and becomes available.
func (s *Service) ReturnSwap(ctx context.Context, id int64) (Swap, error) {
	if id <= 0 {
		return Swap{}, fmt.Errorf("%w: swap id must be positive", ErrInvalidAsset)
	}
	sw, asset, err := s.repo.ReturnSwap(ctx, id, s.dayOr(time.Time{}))
	if err != nil {
		return Swap{}, err
	}
	s.recordChange(ctx, asset.ID, "swap_return",
		fmt.Sprintf("%s removed from %s", sw.AssetName, sw.UnitName))
	return sw, nil
}

// ListSwaps lists the unit swap history of an asset.
func (s *Service) ListSwaps(ctx context.Context, assetID int64, page Page) ([]Swap, error) {
	if _, err := s.asset(ctx, assetID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListSwaps(ctx, assetID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	return items, nil
}

func (s *Service) asset(ctx context.Context, id int64) (Asset, error) {
	asset, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Asset{}, fmt.Errorf("asset %d: %w", id, ErrNotFound)
		}
		return Asset{}, err
	}
	return asset, nil
}

// dayOr truncates t to a UTC calendar day, falling back to today.
func (s *Service) dayOr(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
