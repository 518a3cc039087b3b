// Package registry tracks scripted devices that have called home: who they
// are, where they run, and when they were first and last seen.
package registry

import (
	"context"
	"time"

	"github.com/helewild/gridhud/internal/domain"
)

// Store is the subject registry behind the signed endpoints. Both the
// in-memory and sqlite implementations satisfy it.
type Store interface {
	// Upsert records a registration. New subjects get first_seen =
	// last_seen = now and a classification from the store's classifier;
	// existing subjects keep first_seen and classification, always bump
	// last_seen, and take the incoming display name, region and callback
	// URL only when non-empty.
	Upsert(ctx context.Context, reg domain.Registration, now time.Time) (domain.Subject, error)

	// Lookup resolves ids in input order. Ids the registry has never
	// seen yield the fixed unknown sentinel with age zero.
	Lookup(ctx context.Context, ids []string, now time.Time) ([]domain.ScanResult, error)

	// List returns every known subject, most recently seen first.
	List(ctx context.Context) ([]domain.Subject, error)
}

// CapIDs bounds a scan request to max ids, silently dropping the excess.
// A max of zero or less leaves the input as is.
func CapIDs(ids []string, max int) []string {
	if max > 0 && len(ids) > max {
		return ids[:max]
	}
	return ids
}

// ShapeResults maps requested ids to scan results in input order, filling
// the unknown sentinel for ids absent from found. Shared by the store
// implementations so their lookup semantics cannot drift apart.
func ShapeResults(ids []string, found map[string]domain.Subject, now time.Time) []domain.ScanResult {
	results := make([]domain.ScanResult, 0, len(ids))
	for _, id := range ids {
		sub, ok := found[id]
		if !ok {
			results = append(results, domain.ScanResult{
				ID:          id,
				Name:        domain.UnknownName,
				Affiliation: domain.UnknownAffiliation,
			})
			continue
		}
		results = append(results, domain.ScanResult{
			ID:          id,
			Name:        sub.Name,
			Affiliation: sub.Affiliation,
			Days:        domain.AgeDays(sub.FirstSeen, now.Unix()),
			Known:       true,
		})
	}
	return results
}
