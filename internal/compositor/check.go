package compositor

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDelegation     = errors.New("compositor: delegated layer is not in the layer set")
	ErrDuplicateDelegation   = errors.New("compositor: layer delegated twice")
	ErrMissingInsertionPoint = errors.New("compositor: insertion point not in basemap style")
)

// LayerLookup answers whether a basemap style defines a layer.
type LayerLookup interface {
	HasLayer(id string) bool
}

// CheckDelegations verifies the delegation table against the overlay layer
// ids and the basemap style before anything is drawn. All problems are
// reported together.
func CheckDelegations(layerIDs []string, style LayerLookup, ds []Delegation) error {
	known := make(map[string]int, len(layerIDs))
	for _, id := range layerIDs {
		known[id]++
	}

	var errs []error
	seen := make(map[string]bool, len(ds))
	for _, d := range ds {
		switch n := known[d.LayerID]; {
		case n == 0:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownDelegation, d.LayerID))
		case n > 1:
			errs = append(errs, fmt.Errorf("%w: %q appears %d times in the layer set", ErrDuplicateDelegation, d.LayerID, n))
		}
		if seen[d.LayerID] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateDelegation, d.LayerID))
		}
		seen[d.LayerID] = true

		if d.BeforeID != "" && (style == nil || !style.HasLayer(d.BeforeID)) {
			errs = append(errs, fmt.Errorf("%w: %q before %q", ErrMissingInsertionPoint, d.LayerID, d.BeforeID))
		}
	}
	return errors.Join(errs...)
}
