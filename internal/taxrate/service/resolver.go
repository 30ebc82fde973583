package service

import (
	"context"
	"time"

	"github.com/evetools/oretax/internal/config"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	ratedomain "github.com/evetools/oretax/internal/taxrate/domain"
	"go.uber.org/zap"
)

type resolver struct {
	repo   ratedomain.Repository
	policy *config.TaxPolicyHolder
	log    *zap.Logger
}

func NewResolver(repo ratedomain.Repository, policy *config.TaxPolicyHolder, log *zap.Logger) ratedomain.Resolver {
	return &resolver{
		repo:   repo,
		policy: policy,
		log:    log.Named("taxrate.resolver"),
	}
}

// Resolve cascades most-specific-first:
// corp+category -> corp+all -> alliance+category -> alliance+all -> default.
func (r *resolver) Resolve(ctx context.Context, corpID, allianceID int64, asOf time.Time, category sdedomain.TaxCategory) (float64, error) {
	probes := []struct {
		scope    ratedomain.RateScope
		scopeID  int64
		category sdedomain.TaxCategory
	}{
		{ratedomain.ScopeCorp, corpID, category},
		{ratedomain.ScopeCorp, corpID, sdedomain.CategoryAll},
		{ratedomain.ScopeAlliance, allianceID, category},
		{ratedomain.ScopeAlliance, allianceID, sdedomain.CategoryAll},
	}
	for _, probe := range probes {
		if probe.scopeID == 0 {
			continue
		}
		rate, err := r.repo.FindRate(ctx, probe.scope, probe.scopeID, probe.category, asOf)
		if err != nil {
			return 0, err
		}
		if rate != nil {
			return rate.Percent, nil
		}
	}
	return r.policy.Get().DefaultRatePercent, nil
}

func (r *resolver) Exempt(ctx context.Context, characterID, corpID int64, asOf time.Time) (bool, error) {
	exemptions, err := r.repo.ActiveExemptions(ctx, asOf)
	if err != nil {
		return false, err
	}
	for _, e := range exemptions {
		switch e.Scope {
		case ratedomain.ExemptCharacter:
			if e.ScopeID == characterID {
				return true, nil
			}
		case ratedomain.ExemptCorp:
			if e.ScopeID == corpID {
				return true, nil
			}
		}
	}
	return false, nil
}
