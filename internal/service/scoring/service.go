// Package scoring owns the rating lifecycle: initial score at profile
// registration, Elo deltas on likes/dislikes, event bonuses, and the
// stats counters. All persisted scores go through the configured floor.
package scoring

import (
	"context"

	"github.com/zhanbolat/datecore/internal/app"
	"github.com/zhanbolat/datecore/internal/config"
	"github.com/zhanbolat/datecore/internal/db"
	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/internal/rating"
	"github.com/zhanbolat/datecore/internal/repository"
)

// Service applies scoring events on top of the rating store. The math
// lives in the rating package; this layer reads current scores, calls in,
// floors the result, and persists it (including the denormalized copy on
// the preference row and the redis cache invalidation).
type Service struct {
	appCtx   *app.AppContext
	ratings  *repository.RatingRepository
	prefs    *repository.PreferenceRepository
	k        float64
	minScore float64
}

// NewService creates the scoring service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, cfg *config.Config) *Service {
	k := cfg.Rating.KFactor
	if k <= 0 {
		k = rating.DefaultKFactor
	}
	minScore := cfg.Rating.MinScore
	if minScore <= 0 {
		minScore = rating.DefaultMinScore
	}
	return &Service{
		appCtx:   appCtx,
		ratings:  repository.NewRatingRepository(appCtx.DB),
		prefs:    repository.NewPreferenceRepository(appCtx.DB),
		k:        k,
		minScore: minScore,
	}
}

// RegisterProfile computes and stores the initial score for a freshly
// completed profile and creates its stats row. Idempotent: a profile that
// already has a rating keeps it.
func (s *Service) RegisterProfile(ctx context.Context, profileID uint64) (float64, error) {
	existing, err := s.ratings.GetByProfileID(ctx, profileID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if existing != nil {
		s.appCtx.Logger.Debug("profile already registered", "profile_id", profileID, "score", existing.RatingScore)
		return existing.RatingScore, nil
	}

	p, err := s.appCtx.Profiles.GetProfile(ctx, profileID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	score := rating.Floor(rating.InitialScore(rating.Profile{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Age:        p.Age,
		City:       p.City,
		Bio:        p.Bio,
		Gender:     p.Gender,
		PhotoCount: len(p.PhotoIDs),
	}), s.minScore)

	if err := s.ratings.CreateOrUpdate(ctx, profileID, score); err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.ratings.EnsureStats(ctx, profileID); err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.prefs.UpdateRating(ctx, profileID, score); err != nil {
		return 0, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("profile registered", "profile_id", profileID, "initial_score", score)
	return score, nil
}

// GetScore returns the current score, cache-first. A redis miss falls back
// to the store and repopulates the cache.
func (s *Service) GetScore(ctx context.Context, profileID uint64) (float64, error) {
	if cached, ok, err := s.appCtx.RedisCache.GetScore(ctx, profileID); err == nil && ok {
		return cached, nil
	}

	row, err := s.ratings.GetByProfileID(ctx, profileID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if row == nil {
		return 0, svcErr.Map(svcErr.ErrNotFound)
	}

	_ = s.appCtx.RedisCache.SetScore(ctx, profileID, row.RatingScore)
	return row.RatingScore, nil
}

// GetRating returns the full rating row.
func (s *Service) GetRating(ctx context.Context, profileID uint64) (*db.ProfileRating, error) {
	row, err := s.ratings.GetByProfileID(ctx, profileID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if row == nil {
		return nil, svcErr.Map(svcErr.ErrNotFound)
	}
	return row, nil
}

// TopRatings returns the highest-scored profiles, cache-first. The
// leaderboard tolerates short staleness, so the cache entry expires on its
// TTL instead of being invalidated on every score write.
func (s *Service) TopRatings(ctx context.Context, limit int) ([]db.ProfileRating, error) {
	if cached, ok, err := s.appCtx.RedisCache.GetTopRatings(ctx, limit); err == nil && ok {
		return cached, nil
	}

	rows, err := s.ratings.TopRatings(ctx, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	_ = s.appCtx.RedisCache.SetTopRatings(ctx, limit, rows)
	return rows, nil
}

// ApplyLike applies the Elo like delta to the rated user's score and bumps
// both users' counters. Returns the rated user's new score.
func (s *Service) ApplyLike(ctx context.Context, raterID, ratedID uint64) (float64, error) {
	raterScore, ratedScore, err := s.pairScores(ctx, raterID, ratedID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	delta := rating.LikeDelta(raterScore, ratedScore, s.k)
	newScore, err := s.persist(ctx, ratedID, ratedScore+delta)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	if err := s.ratings.AddLikeGiven(ctx, raterID); err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.ratings.AddLikeReceived(ctx, ratedID); err != nil {
		return 0, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("like delta applied", "rater", raterID, "rated", ratedID, "delta", delta, "new_score", newScore)
	return newScore, nil
}

// ApplyDislike applies the Elo dislike delta to the rated user's score and
// bumps both users' counters.
func (s *Service) ApplyDislike(ctx context.Context, raterID, ratedID uint64) (float64, error) {
	raterScore, ratedScore, err := s.pairScores(ctx, raterID, ratedID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	delta := rating.DislikeDelta(raterScore, ratedScore, s.k)
	newScore, err := s.persist(ctx, ratedID, ratedScore+delta)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	if err := s.ratings.AddDislikeGiven(ctx, raterID); err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.ratings.AddDislikeReceived(ctx, ratedID); err != nil {
		return 0, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("dislike delta applied", "rater", raterID, "rated", ratedID, "delta", delta, "new_score", newScore)
	return newScore, nil
}

// ApplyMatchBonus rewards both members of a fresh match and bumps their
// match counters.
func (s *Service) ApplyMatchBonus(ctx context.Context, user1ID, user2ID uint64) error {
	score1, score2, err := s.pairScores(ctx, user1ID, user2ID)
	if err != nil {
		return svcErr.Map(err)
	}

	if _, err := s.persist(ctx, user1ID, rating.MatchBonus(score1, score2)); err != nil {
		return svcErr.Map(err)
	}
	if _, err := s.persist(ctx, user2ID, rating.MatchBonus(score2, score1)); err != nil {
		return svcErr.Map(err)
	}

	if err := s.ratings.AddMatch(ctx, user1ID); err != nil {
		return svcErr.Map(err)
	}
	return svcErr.Map(s.ratings.AddMatch(ctx, user2ID))
}

// AddReferral rewards a successful referral with a diminishing bonus.
func (s *Service) AddReferral(ctx context.Context, profileID uint64) (float64, error) {
	score, err := s.storedScore(ctx, profileID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	newScore, err := s.persist(ctx, profileID, rating.ReferralBonus(score))
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.ratings.AddRef(ctx, profileID); err != nil {
		return 0, svcErr.Map(err)
	}
	return newScore, nil
}

// AddChatOpened rewards both members of a matched pair when a chat between
// them is opened.
func (s *Service) AddChatOpened(ctx context.Context, userID, partnerID uint64) error {
	score, partnerScore, err := s.pairScores(ctx, userID, partnerID)
	if err != nil {
		return svcErr.Map(err)
	}

	if _, err := s.persist(ctx, userID, rating.ChatOpenBonus(score, partnerScore)); err != nil {
		return svcErr.Map(err)
	}
	if _, err := s.persist(ctx, partnerID, rating.ChatOpenBonus(partnerScore, score)); err != nil {
		return svcErr.Map(err)
	}

	if err := s.ratings.AddChat(ctx, userID); err != nil {
		return svcErr.Map(err)
	}
	return svcErr.Map(s.ratings.AddChat(ctx, partnerID))
}

// GetStats returns the lifecycle counters for a profile.
func (s *Service) GetStats(ctx context.Context, profileID uint64) (*db.ProfileStats, error) {
	stats, err := s.ratings.GetStats(ctx, profileID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if stats == nil {
		return nil, svcErr.Map(svcErr.ErrNotFound)
	}
	return stats, nil
}

// DeleteProfile removes the rating and stats rows and drops the cache entry.
func (s *Service) DeleteProfile(ctx context.Context, profileID uint64) error {
	if err := s.ratings.Delete(ctx, profileID); err != nil {
		return svcErr.Map(err)
	}
	_ = s.appCtx.RedisCache.InvalidateScore(ctx, profileID)
	return nil
}

// persist floors a computed score, writes it to the rating store, refreshes
// the denormalized preference copy, and invalidates the cache entry.
func (s *Service) persist(ctx context.Context, profileID uint64, score float64) (float64, error) {
	floored := rating.Floor(score, s.minScore)
	if err := s.ratings.CreateOrUpdate(ctx, profileID, floored); err != nil {
		return 0, err
	}
	if err := s.prefs.UpdateRating(ctx, profileID, floored); err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.InvalidateScore(ctx, profileID)
	return floored, nil
}

// storedScore reads the persisted score, bypassing the cache: every
// mutation must be computed against what is actually stored.
func (s *Service) storedScore(ctx context.Context, profileID uint64) (float64, error) {
	row, err := s.ratings.GetByProfileID(ctx, profileID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, svcErr.ErrNotFound
	}
	return row.RatingScore, nil
}

func (s *Service) pairScores(ctx context.Context, aID, bID uint64) (float64, float64, error) {
	aScore, err := s.storedScore(ctx, aID)
	if err != nil {
		return 0, 0, err
	}
	bScore, err := s.storedScore(ctx, bID)
	if err != nil {
		return 0, 0, err
	}
	return aScore, bScore, nil
}
