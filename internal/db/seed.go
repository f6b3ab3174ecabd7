package db

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhanbolat/datecore/internal/logger"
	"github.com/zhanbolat/datecore/internal/rating"
)

// SeedTestData resets the database and populates it with demo preferences,
// ratings, and likes.
//
// Behavior:
//  1. Clears all five tables.
//  2. Creates 20 users (10 male, 10 female) scattered around the Almaty
//     city center, with initial scores from the calculator.
//  3. Generates likes with ~70% like probability; every 3rd pair gets a
//     guaranteed reciprocal like so the match protocol has mutuals to find.
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"likes", "matches", "profile_stats", "profile_ratings", "user_preferences"} {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	logger.Info("cleared existing data")

	// Almaty city center
	const centerLat, centerLon = 43.238949, 76.889709

	// --- Seed preferences + ratings (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		gender, preferred := GenderMale, GenderFemale
		if i > 10 {
			gender, preferred = GenderFemale, GenderMale
		}

		age := 18 + r.Intn(18)
		lat := centerLat + (r.Float64()-0.5)*0.8 // within ~45 km of center
		lon := centerLon + (r.Float64()-0.5)*0.8

		bio := ""
		if r.Intn(100) < 60 {
			bio = "looking for someone to explore the city with"
		}

		score := rating.Floor(rating.InitialScore(rating.Profile{
			FirstName:  fmt.Sprintf("user%d", i),
			LastName:   "demo",
			Age:        age,
			City:       "Almaty",
			Bio:        bio,
			Gender:     gender,
			PhotoCount: r.Intn(4),
		}), rating.DefaultMinScore)

		pref := UserPreference{
			UserID:          uint64(i),
			Age:             age,
			Gender:          gender,
			Latitude:        &lat,
			Longitude:       &lon,
			PreferredGender: preferred,
			PreferredMinAge: 18,
			PreferredMaxAge: 40,
			Rating:          score,
		}
		if err := gdb.Create(&pref).Error; err != nil {
			return fmt.Errorf("failed to seed preference: %w", err)
		}

		if err := gdb.Create(&ProfileRating{
			ProfileID:        uint64(i),
			RatingScore:      score,
			LastCalculatedAt: time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to seed rating: %w", err)
		}

		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&ProfileStats{ProfileID: uint64(i)}).Error; err != nil {
			return fmt.Errorf("failed to seed stats: %w", err)
		}
	}
	logger.Info("seeded users with preferences and ratings", "count", 20)

	// --- Seed likes (~100+) ---
	counter := 0
	for likerID := 1; likerID <= 20; likerID++ {
		for j := 0; j < 6; j++ {
			likedID := uint64(r.Intn(20) + 1)
			if uint64(likerID) == likedID {
				continue
			}

			// like probability 70%
			likeType := LikeTypeLike
			if r.Intn(100) >= 70 {
				likeType = LikeTypeDislike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				likeType = LikeTypeLike
				recip := Like{LikerID: likedID, LikedID: uint64(likerID), LikeType: LikeTypeLike}
				gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&recip)
			}

			like := Like{LikerID: uint64(likerID), LikedID: likedID, LikeType: likeType}
			if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			counter++
		}
	}
	logger.Info("seeded likes")

	return nil
}
