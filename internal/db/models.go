package db

import (
	"time"
)

// Gender and like-type values stored in the tables below.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderAny    = "any"

	LikeTypeLike    = "like"
	LikeTypeDislike = "dislike"
)

// UserPreference holds the matching attributes of one user: their own
// age/gender/location plus the filter applied to candidates. Rating is a
// denormalized copy of the current score so the candidate query can order
// by it without a join.
//
// Latitude/Longitude are kept as plain nullable columns rather than a
// spatial point so the same queries run on MySQL and SQLite; precise
// distance is computed in-process.
type UserPreference struct {
	UserID          uint64   `gorm:"primaryKey"`
	Age             int      `gorm:"not null;index:idx_gender_age,priority:2"`
	Gender          string   `gorm:"size:16;not null;index:idx_gender_age,priority:1"`
	Latitude        *float64 `gorm:"type:decimal(10,8)"`
	Longitude       *float64 `gorm:"type:decimal(11,8)"`
	PreferredGender string   `gorm:"size:16;not null;default:any"`
	PreferredMinAge int      `gorm:"not null;default:18"`
	PreferredMaxAge int      `gorm:"not null;default:99"`
	Rating          float64
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// Like is one recorded like/dislike action.
//
// Composite PK: (LikerID, LikedID) — at most one row per ordered pair.
// A second action on the same pair hits the constraint and is rejected,
// which is what makes the protocol idempotent under retries.
type Like struct {
	LikerID   uint64    `gorm:"primaryKey"`
	LikedID   uint64    `gorm:"primaryKey;index:idx_liked"`
	LikeType  string    `gorm:"size:10;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Match is one mutually-liking pair.
//
// Composite PK: (User1ID, User2ID) with the invariant User1ID < User2ID.
// Storing the pair in canonical order means (A,B) and (B,A) collapse to a
// single row, and a conditional insert on the PK is all the dedup needed.
type Match struct {
	User1ID       uint64    `gorm:"primaryKey"`
	User2ID       uint64    `gorm:"primaryKey;index:idx_user2"`
	User1Username string    `gorm:"size:64;not null"`
	User2Username string    `gorm:"size:64;not null"`
	MatchedAt     time.Time `gorm:"autoCreateTime"`
}

// ProfileRating is the persisted score of one profile.
type ProfileRating struct {
	ProfileID        uint64  `gorm:"primaryKey"`
	RatingScore      float64 `gorm:"type:decimal(7,2);not null"`
	LastCalculatedAt time.Time
}

// ProfileStats are lifecycle counters, incremented in place. The row is
// created once at profile registration; counter updates require it to
// already exist.
type ProfileStats struct {
	ProfileID        uint64 `gorm:"primaryKey"`
	LikesGiven       uint64 `gorm:"not null;default:0"`
	LikesReceived    uint64 `gorm:"not null;default:0"`
	DislikesGiven    uint64 `gorm:"not null;default:0"`
	DislikesReceived uint64 `gorm:"not null;default:0"`
	MatchesCount     uint64 `gorm:"not null;default:0"`
	ChatsCount       uint64 `gorm:"not null;default:0"`
	RefsCount        uint64 `gorm:"not null;default:0"`
}
