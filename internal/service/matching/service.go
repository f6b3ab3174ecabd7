// Package matching implements the like/match protocol and the geo
// candidate search on top of the like/match and preference stores.
package matching

import (
	"context"
	"time"

	"github.com/zhanbolat/datecore/internal/app"
	"github.com/zhanbolat/datecore/internal/config"
	"github.com/zhanbolat/datecore/internal/db"
	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/internal/events"
	"github.com/zhanbolat/datecore/internal/repository"
	"github.com/zhanbolat/datecore/internal/service/scoring"
)

// Action is what a rater did to a rated user.
type Action string

const (
	ActionLike    Action = db.LikeTypeLike
	ActionDislike Action = db.LikeTypeDislike
)

// Outcome is the protocol result of one recorded action.
type Outcome string

const (
	// OutcomeDisliked: a dislike was recorded; no match semantics apply.
	OutcomeDisliked Outcome = "disliked"
	// OutcomeHalfMatch: a like was recorded but the other side has not
	// liked back yet.
	OutcomeHalfMatch Outcome = "half_match"
	// OutcomeNewMatch: the like completed a mutual pair and created the
	// match row.
	OutcomeNewMatch Outcome = "new_match"
	// OutcomeAlreadyMatched: the pair was mutual before and the match row
	// already exists. Idempotent success.
	OutcomeAlreadyMatched Outcome = "already_matched"
)

// Service orchestrates like recording, mutual-like detection, match
// creation, rating side effects, and event emission. Every method is safe
// to call concurrently; all durable state lives in the stores.
type Service struct {
	appCtx *app.AppContext
	likes  *repository.LikeMatchRepository
	prefs  *repository.PreferenceRepository
	scores *scoring.Service

	initialRadiusKm float64
	radiusStepKm    float64
	maxRadiusKm     float64
	minProfiles     int
}

// NewService creates the matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, cfg *config.Config, scores *scoring.Service) *Service {
	return &Service{
		appCtx:          appCtx,
		likes:           repository.NewLikeMatchRepository(appCtx.DB),
		prefs:           repository.NewPreferenceRepository(appCtx.DB),
		scores:          scores,
		initialRadiusKm: cfg.Search.InitialRadiusKm,
		radiusStepKm:    cfg.Search.RadiusStepKm,
		maxRadiusKm:     cfg.Search.MaxRadiusKm,
		minProfiles:     cfg.Search.MinProfiles,
	}
}

// RecordAction runs the like/dislike protocol for one ordered pair:
//
//  1. a pair that already has a like row is rejected with DuplicateAction
//  2. the new like row is persisted (the composite PK is the backstop
//     against concurrent duplicates)
//  3. the Elo delta is applied to the rated user regardless of outcome
//  4. on a like, the reverse row decides half-match vs mutual like
//  5. a mutual like conditionally inserts the canonical match row; losing
//     that race is AlreadyMatched, winning it grants both users the match
//     bonus and emits a match event
//
// Like and match events are fire-and-forget: publish failures are logged
// and never roll back the committed writes.
func (s *Service) RecordAction(
	ctx context.Context,
	raterID, ratedID uint64,
	raterUsername, ratedUsername string,
	action Action,
) (Outcome, error) {
	if raterID == ratedID {
		return "", svcErr.InvalidArgument("cannot rate yourself")
	}
	if action != ActionLike && action != ActionDislike {
		return "", svcErr.InvalidArgument("action must be like or dislike")
	}

	s.appCtx.Logger.Debug("RecordAction called", "rater", raterID, "rated", ratedID, "action", action)

	existing, err := s.likes.GetLike(ctx, raterID, ratedID)
	if err != nil {
		return "", svcErr.Map(err)
	}
	if existing != nil {
		return "", svcErr.Map(svcErr.ErrDuplicateAction)
	}

	if err := s.likes.CreateLike(ctx, raterID, ratedID, string(action)); err != nil {
		return "", svcErr.Map(err)
	}

	if action == ActionDislike {
		if _, err := s.scores.ApplyDislike(ctx, raterID, ratedID); err != nil {
			return "", svcErr.Map(err)
		}
		return OutcomeDisliked, nil
	}

	if _, err := s.scores.ApplyLike(ctx, raterID, ratedID); err != nil {
		return "", svcErr.Map(err)
	}

	s.publish(ctx, events.TopicLikes, events.LikeEvent{
		LikerID:   raterID,
		LikedID:   ratedID,
		CreatedAt: time.Now().UTC(),
	})

	reverse, err := s.likes.GetLike(ctx, ratedID, raterID)
	if err != nil {
		return "", svcErr.Map(err)
	}
	if reverse == nil || reverse.LikeType != db.LikeTypeLike {
		return OutcomeHalfMatch, nil
	}

	match, created, err := s.likes.CreateMatch(ctx, raterID, ratedID, raterUsername, ratedUsername)
	if err != nil {
		return "", svcErr.Map(err)
	}
	if !created {
		s.appCtx.Logger.Debug("match already exists", "user1", match.User1ID, "user2", match.User2ID)
		return OutcomeAlreadyMatched, nil
	}

	if err := s.scores.ApplyMatchBonus(ctx, match.User1ID, match.User2ID); err != nil {
		return "", svcErr.Map(err)
	}

	s.publish(ctx, events.TopicMatches, events.MatchEvent{
		User1ID:       match.User1ID,
		User2ID:       match.User2ID,
		User1Username: match.User1Username,
		User2Username: match.User2Username,
		MatchedAt:     match.MatchedAt,
	})

	s.appCtx.Logger.Info("new match", "user1", match.User1ID, "user2", match.User2ID)
	return OutcomeNewMatch, nil
}

// PreferenceInput is the bot-facing shape of a create/update preferences
// request. Nil location means "not provided".
type PreferenceInput struct {
	UserID          uint64
	Age             int
	Gender          string
	Latitude        *float64
	Longitude       *float64
	PreferredGender string
	PreferredMinAge int
	PreferredMaxAge int
}

// UpsertPreference creates or refreshes the user's preference row. The
// denormalized rating is carried over from the rating store when present.
func (s *Service) UpsertPreference(ctx context.Context, in PreferenceInput) error {
	if in.PreferredGender == "" {
		in.PreferredGender = db.GenderAny
	}

	pref := &db.UserPreference{
		UserID:          in.UserID,
		Age:             in.Age,
		Gender:          in.Gender,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		PreferredGender: in.PreferredGender,
		PreferredMinAge: in.PreferredMinAge,
		PreferredMaxAge: in.PreferredMaxAge,
	}

	if score, err := s.scores.GetScore(ctx, in.UserID); err == nil {
		pref.Rating = score
	}

	return svcErr.Map(s.prefs.Upsert(ctx, pref))
}

// ListMatches returns the user's matches as partner views, newest first,
// with cursor pagination.
func (s *Service) ListMatches(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]repository.MatchPartner, *string, error) {
	partners, next, err := s.likes.ListMatches(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	return partners, next, nil
}

// DeleteProfile cascades a profile deletion through the core: likes and
// matches, the preference row, and the rating/stats rows.
func (s *Service) DeleteProfile(ctx context.Context, userID uint64) error {
	if err := s.likes.DeleteUserData(ctx, userID); err != nil {
		return svcErr.Map(err)
	}
	if err := s.prefs.Delete(ctx, userID); err != nil {
		return svcErr.Map(err)
	}
	return svcErr.Map(s.scores.DeleteProfile(ctx, userID))
}

// publish sends one event with the fire-and-forget policy.
func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if err := s.appCtx.Events.Publish(ctx, topic, payload); err != nil {
		s.appCtx.Logger.Warn("event publish failed", "topic", topic, "err", err)
	}
}
