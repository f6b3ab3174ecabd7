package matching

import (
	"context"
	"sort"

	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/internal/profile"
	"github.com/zhanbolat/datecore/internal/repository"
)

// FindCandidates returns the ids of profiles to show the viewer next,
// best first.
//
// Expanding-radius search: starting at the initial radius, each step
// queries candidates inside the current circle that pass the viewer's
// gender/age filters and are not already matched with (or equal to) the
// viewer, capped at twice the per-step profile target. The radius grows by
// a fixed step until the maximum; collected rows are deduplicated, merged,
// sorted by (distance asc, rating desc), and sliced to [offset, offset+limit).
//
// Read-only: calling it repeatedly mutates nothing and it is safe to
// cancel mid-flight.
func (s *Service) FindCandidates(ctx context.Context, viewerID uint64, offset, limit int) ([]uint64, error) {
	if offset < 0 {
		return nil, svcErr.InvalidArgument("offset must be non-negative")
	}

	viewer, err := s.prefs.Get(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if viewer == nil {
		return nil, svcErr.Map(svcErr.ErrNotFound)
	}
	if viewer.Latitude == nil || viewer.Longitude == nil {
		return nil, svcErr.Map(svcErr.ErrNoLocation)
	}

	matched, err := s.likes.MatchedUserIDs(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	excluded := make([]uint64, 0, len(matched)+1)
	excluded = append(excluded, viewerID)
	for id := range matched {
		excluded = append(excluded, id)
	}

	seen := make(map[uint64]struct{})
	var found []repository.Candidate

	for radius := s.initialRadiusKm; radius <= s.maxRadiusKm; radius += s.radiusStepKm {
		batch, err := s.prefs.CandidatesWithin(ctx, viewer, radius, excluded, 2*s.minProfiles)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		for _, c := range batch {
			if _, ok := seen[c.UserID]; ok {
				continue
			}
			seen[c.UserID] = struct{}{}
			found = append(found, c)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].DistanceKm != found[j].DistanceKm {
			return found[i].DistanceKm < found[j].DistanceKm
		}
		return found[i].Rating > found[j].Rating
	})

	if offset >= len(found) {
		return []uint64{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(found) {
		end = len(found)
	}

	ids := make([]uint64, 0, end-offset)
	for _, c := range found[offset:end] {
		ids = append(ids, c.UserID)
	}

	s.appCtx.Logger.Debug("candidates found", "viewer", viewerID, "total", len(found), "returned", len(ids))
	return ids, nil
}

// FindCandidateProfiles runs FindCandidates and expands the ids into full
// profile records via the profile provider.
func (s *Service) FindCandidateProfiles(ctx context.Context, viewerID uint64, offset, limit int) ([]profile.Profile, error) {
	ids, err := s.FindCandidates(ctx, viewerID, offset, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []profile.Profile{}, nil
	}
	profiles, err := s.appCtx.Profiles.GetManyProfiles(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return profiles, nil
}
