package pricing

import (
	"context"

	"github.com/evetools/oretax/internal/cache"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	"go.uber.org/zap"
)

// Resolver maps an item to its liquidation-equivalent compressed variant.
// Taxable value always uses the compressed price, whether or not the unit
// actually was compressed. Reference data changes rarely, so results cache
// indefinitely until Invalidate.
type Resolver struct {
	sde sdedomain.Repository
	log *zap.Logger

	variants cache.Cache[int64, int64]
}

func NewResolver(sde sdedomain.Repository, log *zap.Logger) *Resolver {
	return &Resolver{
		sde:      sde,
		log:      log.Named("pricing.compression"),
		variants: cache.NewTTLCache[int64, int64](),
	}
}

// CompressedVariant returns the compressed variant's type id, or the original
// id when the item is already compressed or no variant exists.
func (r *Resolver) CompressedVariant(ctx context.Context, typeID int64) int64 {
	if v, ok := r.variants.Get(typeID); ok {
		return v
	}
	v := r.lookup(ctx, typeID)
	r.variants.Set(typeID, v, 0)
	return v
}

// Invalidate clears the variant cache after a static data refresh.
func (r *Resolver) Invalidate() {
	r.variants.Flush()
}

func (r *Resolver) lookup(ctx context.Context, typeID int64) int64 {
	item, err := r.sde.FindType(ctx, typeID)
	if err != nil {
		r.log.Warn("item lookup failed", zap.Int64("type_id", typeID), zap.Error(err))
		return typeID
	}
	if item == nil || item.IsCompressed() {
		return typeID
	}

	variant, err := r.sde.FindTypeByName(ctx, item.CompressedName())
	if err != nil {
		r.log.Warn("compressed variant lookup failed", zap.Int64("type_id", typeID), zap.Error(err))
		return typeID
	}
	if variant == nil {
		return typeID
	}
	return variant.ID
}
