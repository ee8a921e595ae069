package identity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/pkg/types"
)

// LocationStore is what the LocationResolver needs from storage.
type LocationStore interface {
	GetOrCreateLocation(ctx context.Context, owner, name string) (int64, bool, error)
}

// LocationResolver maps a location reference to a canonical location id.
type LocationResolver struct {
	log *zap.Logger
}

// NewLocationResolver creates a LocationResolver. A nil logger discards output.
func NewLocationResolver(log *zap.Logger) *LocationResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocationResolver{log: log}
}

// Resolve returns nil for an absent reference, the id itself for an identity
// reference, and otherwise the id of the exact-name match, creating the
// location when there is none.
func (r *LocationResolver) Resolve(ctx context.Context, store LocationStore, owner string, ref types.LocationRef) (*int64, error) {
	if ref.IsNone() {
		locationResolutions.WithLabelValues(OutcomeNone).Inc()
		return nil, nil
	}
	if ref.IsIdentity() {
		id := ref.ID()
		locationResolutions.WithLabelValues(OutcomeIdentity).Inc()
		return &id, nil
	}

	name := strings.TrimSpace(ref.Name())
	if name == "" {
		locationResolutions.WithLabelValues(OutcomeNone).Inc()
		return nil, nil
	}

	id, created, err := store.GetOrCreateLocation(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("resolve location %q: %w", name, err)
	}

	outcome := OutcomeExisting
	if created {
		outcome = OutcomeCreated
	}
	locationResolutions.WithLabelValues(outcome).Inc()
	r.log.Debug("resolved location",
		zap.String("owner", owner),
		zap.String("name", name),
		zap.Int64("location_id", id),
		zap.String("outcome", outcome))
	return &id, nil
}
