package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhanbolat/datecore/internal/db"
	"github.com/zhanbolat/datecore/internal/geo"
)

// PreferenceRepository provides data access for UserPreference rows and
// the candidate query behind the geo search.
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new repository bound to the given DB connection.
func NewPreferenceRepository(database *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

// Get returns the preference row, or nil when the user has none.
func (r *PreferenceRepository) Get(ctx context.Context, userID uint64) (*db.UserPreference, error) {
	var pref db.UserPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Upsert creates the preference row on profile completion and overwrites
// it on profile refill.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *db.UserPreference) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"age", "gender", "latitude", "longitude",
				"preferred_gender", "preferred_min_age", "preferred_max_age",
				"rating",
			}),
		}).
		Create(pref).Error
}

// UpdateRating refreshes the denormalized rating copy. Missing rows are
// fine: the user simply has no preference record yet.
func (r *PreferenceRepository) UpdateRating(ctx context.Context, userID uint64, rating float64) error {
	return r.db.WithContext(ctx).
		Model(&db.UserPreference{}).
		Where("user_id = ?", userID).
		UpdateColumn("rating", rating).Error
}

// Delete removes the preference row (profile deletion).
func (r *PreferenceRepository) Delete(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&db.UserPreference{}).Error
}

// Candidate is one geo-search hit: an id plus the two ranking keys.
type Candidate struct {
	UserID     uint64
	DistanceKm float64
	Rating     float64
}

// CandidatesWithin returns candidates inside radiusKm of the viewer that
// pass the viewer's gender and age filters and are not excluded, ordered
// by (distance asc, rating desc) and capped at limit.
//
// SQL prefilters with a bounding box over the portable lat/lng columns;
// the exact spheroidal distance cut happens in-process.
func (r *PreferenceRepository) CandidatesWithin(
	ctx context.Context,
	viewer *db.UserPreference,
	radiusKm float64,
	excluded []uint64,
	limit int,
) ([]Candidate, error) {
	lat, lon := *viewer.Latitude, *viewer.Longitude
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(lat, lon, radiusKm)

	query := r.db.WithContext(ctx).
		Model(&db.UserPreference{}).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon).
		Where("age BETWEEN ? AND ?", viewer.PreferredMinAge, viewer.PreferredMaxAge)

	if len(excluded) > 0 {
		query = query.Where("user_id NOT IN ?", excluded)
	}
	if viewer.PreferredGender != db.GenderAny {
		query = query.Where("gender = ?", viewer.PreferredGender)
	}

	var rows []db.UserPreference
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		d := geo.DistanceKm(lat, lon, *row.Latitude, *row.Longitude)
		if d > radiusKm {
			continue
		}
		candidates = append(candidates, Candidate{
			UserID:     row.UserID,
			DistanceKm: d,
			Rating:     row.Rating,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].Rating > candidates[j].Rating
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
