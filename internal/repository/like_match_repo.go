package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhanbolat/datecore/internal/db"
	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/internal/utils/pagination"
)

// LikeMatchRepository provides data access for Like and Match rows.
// It is the only writer of both tables and the single place that knows the
// canonical pair ordering.
type LikeMatchRepository struct {
	db *gorm.DB
}

// NewLikeMatchRepository creates a new repository bound to the given DB connection.
func NewLikeMatchRepository(database *gorm.DB) *LikeMatchRepository {
	return &LikeMatchRepository{db: database}
}

// canonicalPair orders an unordered user pair by ascending id. Every read
// and write of the matches table goes through this, which is what prevents
// (A,B)/(B,A) duplicates.
func canonicalPair(a, b uint64) (uint64, uint64, error) {
	if a == b {
		return 0, 0, svcErr.ErrInvariantViolation
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}

// GetLike returns the like row for the ordered pair, or nil when absent.
func (r *LikeMatchRepository) GetLike(ctx context.Context, likerID, likedID uint64) (*db.Like, error) {
	var like db.Like
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// CreateLike inserts a like/dislike row for the ordered pair. The composite
// PK makes the insert conditional: a second action on the same pair hits
// the constraint and comes back as ErrDuplicateAction.
func (r *LikeMatchRepository) CreateLike(ctx context.Context, likerID, likedID uint64, likeType string) error {
	like := db.Like{
		LikerID:  likerID,
		LikedID:  likedID,
		LikeType: likeType,
	}
	err := r.db.WithContext(ctx).Create(&like).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return svcErr.ErrDuplicateAction
	}
	return err
}

// GetMatch returns the match row for the unordered pair, or nil when absent.
// Lookup is canonical, so argument order does not matter.
func (r *LikeMatchRepository) GetMatch(ctx context.Context, userA, userB uint64) (*db.Match, error) {
	user1, user2, err := canonicalPair(userA, userB)
	if err != nil {
		return nil, err
	}

	var match db.Match
	err = r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// CreateMatch conditionally inserts the canonical match row for the pair.
// Returns (match, true) when this call created the row and (match, false)
// when it already existed — the atomic ON CONFLICT DO NOTHING is what keeps
// two racing mutual likes down to a single row.
func (r *LikeMatchRepository) CreateMatch(
	ctx context.Context,
	userA, userB uint64,
	usernameA, usernameB string,
) (*db.Match, bool, error) {
	user1, user2, err := canonicalPair(userA, userB)
	if err != nil {
		return nil, false, err
	}

	usernames := map[uint64]string{userA: usernameA, userB: usernameB}
	match := db.Match{
		User1ID:       user1,
		User2ID:       user2,
		User1Username: usernames[user1],
		User2Username: usernames[user2],
		// millisecond precision, so the pagination cursor round-trips exactly
		MatchedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&match)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.GetMatch(ctx, user1, user2)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &match, true, nil
}

// MatchedUserIDs returns the set of partner ids the user is matched with,
// whichever canonical position the user occupies.
func (r *LikeMatchRepository) MatchedUserIDs(ctx context.Context, userID uint64) (map[uint64]struct{}, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}

	partners := make(map[uint64]struct{}, len(matches))
	for _, m := range matches {
		if m.User1ID == userID {
			partners[m.User2ID] = struct{}{}
		} else {
			partners[m.User1ID] = struct{}{}
		}
	}
	return partners, nil
}

// MatchPartner is one entry of a user's match list, seen from their side.
type MatchPartner struct {
	UserID    uint64
	Username  string
	MatchedAt time.Time
}

// ListMatches returns the user's matches as partner views, newest first,
// with cursor-based pagination via paginationToken.
func (r *LikeMatchRepository) ListMatches(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]MatchPartner, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	// Order by matched_at with the partner id as tie-break, so matches
	// sharing a timestamp paginate deterministically. For a fixed user,
	// (user1_id DESC, user2_id DESC) equals partner-id descending.
	query := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("matched_at DESC, user1_id DESC, user2_id DESC").
		Limit(limit + 1)

	if cursor.MatchedUnix > 0 {
		ts := time.UnixMilli(cursor.MatchedUnix)
		query = query.Where(
			"matched_at < ? OR (matched_at = ? AND (CASE WHEN user1_id = ? THEN user2_id ELSE user1_id END) < ?)",
			ts, ts, userID, cursor.PartnerID,
		)
	}

	var matches []db.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(matches) > limit {
		matches = matches[:limit]
		last := matches[limit-1]
		partnerID := last.User1ID
		if partnerID == userID {
			partnerID = last.User2ID
		}
		token, _ := pagination.Encode(pagination.Cursor{
			PartnerID:   partnerID,
			MatchedUnix: last.MatchedAt.UnixMilli(),
		})
		nextToken = &token
	}

	partners := make([]MatchPartner, 0, len(matches))
	for _, m := range matches {
		p := MatchPartner{UserID: m.User1ID, Username: m.User1Username, MatchedAt: m.MatchedAt}
		if m.User1ID == userID {
			p = MatchPartner{UserID: m.User2ID, Username: m.User2Username, MatchedAt: m.MatchedAt}
		}
		partners = append(partners, p)
	}
	return partners, nextToken, nil
}

// DeleteUserData removes every like and match the user participates in,
// in either direction. Used on profile deletion.
func (r *LikeMatchRepository) DeleteUserData(ctx context.Context, userID uint64) error {
	if err := r.db.WithContext(ctx).
		Where("liker_id = ? OR liked_id = ?", userID, userID).
		Delete(&db.Like{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Delete(&db.Match{}).Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
