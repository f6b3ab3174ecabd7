package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhanbolat/datecore/internal/db"
	svcErr "github.com/zhanbolat/datecore/internal/errors"
)

// RatingRepository provides data access for ProfileRating and ProfileStats.
// It is the only writer of both tables.
type RatingRepository struct {
	db *gorm.DB
}

// NewRatingRepository creates a new repository bound to the given DB connection.
func NewRatingRepository(database *gorm.DB) *RatingRepository {
	return &RatingRepository{db: database}
}

// GetByProfileID returns the rating row, or nil when the profile has none.
// Absence is a regular outcome here, not an error.
func (r *RatingRepository) GetByProfileID(ctx context.Context, profileID uint64) (*db.ProfileRating, error) {
	var rating db.ProfileRating
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// CreateOrUpdate upserts the score for a profile. If no row exists one is
// created; otherwise rating_score is overwritten and last_calculated_at
// refreshed. Idempotent by construction.
func (r *RatingRepository) CreateOrUpdate(ctx context.Context, profileID uint64, score float64) error {
	rating := db.ProfileRating{
		ProfileID:        profileID,
		RatingScore:      score,
		LastCalculatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating_score", "last_calculated_at"}),
		}).
		Create(&rating).Error
}

// TopRatings returns up to limit rating rows ordered by score descending.
func (r *RatingRepository) TopRatings(ctx context.Context, limit int) ([]db.ProfileRating, error) {
	var ratings []db.ProfileRating
	err := r.db.WithContext(ctx).
		Order("rating_score DESC").
		Limit(limit).
		Find(&ratings).Error
	return ratings, err
}

// Delete removes the rating and stats rows of a profile (profile deletion).
func (r *RatingRepository) Delete(ctx context.Context, profileID uint64) error {
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&db.ProfileRating{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&db.ProfileStats{}).Error
}

// EnsureStats creates the counters row for a profile if it does not exist
// yet. Called exactly once per profile, at registration time; every
// increment below requires the row to be present.
func (r *RatingRepository) EnsureStats(ctx context.Context, profileID uint64) error {
	stats := db.ProfileStats{ProfileID: profileID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&stats).Error
}

// GetStats returns the counters row, or nil when absent.
func (r *RatingRepository) GetStats(ctx context.Context, profileID uint64) (*db.ProfileStats, error) {
	var stats db.ProfileStats
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *RatingRepository) AddLikeGiven(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "likes_given")
}

func (r *RatingRepository) AddLikeReceived(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "likes_received")
}

func (r *RatingRepository) AddDislikeGiven(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "dislikes_given")
}

func (r *RatingRepository) AddDislikeReceived(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "dislikes_received")
}

func (r *RatingRepository) AddMatch(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "matches_count")
}

func (r *RatingRepository) AddChat(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "chats_count")
}

func (r *RatingRepository) AddRef(ctx context.Context, profileID uint64) error {
	return r.incrStat(ctx, profileID, "refs_count")
}

// incrStat bumps one counter in place. The column name is always one of
// the fixed strings above, never caller input.
func (r *RatingRepository) incrStat(ctx context.Context, profileID uint64, column string) error {
	res := r.db.WithContext(ctx).
		Model(&db.ProfileStats{}).
		Where("profile_id = ?", profileID).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcErr.ErrNotFound
	}
	return nil
}
