package refdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rentcore/internal/model"
)

// Vocabulary cache scopes.
const (
	scopeProvinces = "provinces"
	scopeWards     = "wards:" // suffixed with the province id
	scopeAmenities = "amenities"
)

// DirectoryAPI is the slice of the directory client the resolver needs;
// tests substitute a stub.
type DirectoryAPI interface {
	FetchProvinces(ctx context.Context) ([]model.DirectoryRecord, error)
	FetchWards(ctx context.Context, provinceID string) ([]model.DirectoryRecord, error)
	FetchAmenities(ctx context.Context) ([]model.DirectoryRecord, error)
}

// Resolver fuzzy-matches free-text mentions against per-scope cached
// vocabularies. Caches are time-boxed and refreshed lazily by whichever
// request first observes expiry; racing refreshes overwrite idempotently.
type Resolver struct {
	api               DirectoryAPI
	ttl               time.Duration
	defaultProvince   string
	locationThreshold float64
	amenityThreshold  float64
	log               *zap.SugaredLogger

	mu     sync.RWMutex
	scopes map[string]*scopeCache
}

type scopeCache struct {
	records   []model.DirectoryRecord
	fetchedAt time.Time
}

// NewResolver creates a resolver. Amenity matching is deliberately more
// permissive than location matching.
func NewResolver(api DirectoryAPI, ttl time.Duration, defaultProvince string, locationThreshold, amenityThreshold float64, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		api:               api,
		ttl:               ttl,
		defaultProvince:   defaultProvince,
		locationThreshold: locationThreshold,
		amenityThreshold:  amenityThreshold,
		log:               log,
		scopes:            make(map[string]*scopeCache),
	}
}

// ResolveLocation resolves a raw place mention to canonical province/ward
// refs. A mention that matches a ward of the default province better than
// any province is treated as a ward. Unresolved mentions pass through as
// raw ward refs so downstream search still sees the user's intent.
func (r *Resolver) ResolveLocation(ctx context.Context, raw string) (province, ward *model.CanonicalRef) {
	if raw == "" {
		return nil, nil
	}

	provinces := r.records(ctx, scopeProvinces, func(ctx context.Context) ([]model.DirectoryRecord, error) {
		return r.api.FetchProvinces(ctx)
	})
	provRec, provScore, provOK := BestMatch(raw, provinces, r.locationThreshold)

	wards := r.records(ctx, scopeWards+r.defaultProvince, func(ctx context.Context) ([]model.DirectoryRecord, error) {
		return r.api.FetchWards(ctx, r.defaultProvince)
	})
	wardRec, wardScore, wardOK := BestMatch(raw, wards, r.locationThreshold)

	switch {
	case wardOK && (!provOK || wardScore >= provScore):
		w := model.ResolvedRef(wardRec.ID, wardRec.Name)
		p := model.ResolvedRef(r.defaultProvince, "")
		return &p, &w
	case provOK:
		p := model.ResolvedRef(provRec.ID, provRec.Name)
		return &p, nil
	default:
		w := model.RawRef(raw)
		return nil, &w
	}
}

// ResolveWard resolves a raw ward mention within one province.
func (r *Resolver) ResolveWard(ctx context.Context, provinceID, raw string) model.CanonicalRef {
	if provinceID == "" {
		provinceID = r.defaultProvince
	}
	wards := r.records(ctx, scopeWards+provinceID, func(ctx context.Context) ([]model.DirectoryRecord, error) {
		return r.api.FetchWards(ctx, provinceID)
	})
	if rec, _, ok := BestMatch(raw, wards, r.locationThreshold); ok {
		return model.ResolvedRef(rec.ID, rec.Name)
	}
	return model.RawRef(raw)
}

// ResolveAmenities resolves each raw amenity mention; unmatched mentions are
// kept verbatim rather than dropped.
func (r *Resolver) ResolveAmenities(ctx context.Context, raws []string) []model.CanonicalRef {
	if len(raws) == 0 {
		return nil
	}

	amenities := r.records(ctx, scopeAmenities, func(ctx context.Context) ([]model.DirectoryRecord, error) {
		return r.api.FetchAmenities(ctx)
	})

	refs := make([]model.CanonicalRef, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		var ref model.CanonicalRef
		if rec, _, ok := BestMatch(raw, amenities, r.amenityThreshold); ok {
			ref = model.ResolvedRef(rec.ID, rec.Name)
		} else {
			ref = model.RawRef(raw)
		}
		if seen[ref.Key()] {
			continue
		}
		seen[ref.Key()] = true
		refs = append(refs, ref)
	}
	return refs
}

// records returns the cached vocabulary for a scope, refreshing it when the
// freshness window has passed. A failed refresh serves the stale copy when
// one exists.
func (r *Resolver) records(ctx context.Context, scope string, fetch func(ctx context.Context) ([]model.DirectoryRecord, error)) []model.DirectoryRecord {
	r.mu.RLock()
	cached, ok := r.scopes[scope]
	r.mu.RUnlock()

	if ok && time.Since(cached.fetchedAt) < r.ttl {
		return cached.records
	}

	records, err := fetch(ctx)
	if err != nil {
		r.log.Warnw("vocabulary refresh failed", "scope", scope, "error", err)
		if ok {
			return cached.records
		}
		return nil
	}

	r.mu.Lock()
	r.scopes[scope] = &scopeCache{records: records, fetchedAt: time.Now()}
	r.mu.Unlock()

	return records
}
