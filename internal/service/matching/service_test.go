package matching_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zhanbolat/datecore/internal/app"
	"github.com/zhanbolat/datecore/internal/cache"
	"github.com/zhanbolat/datecore/internal/config"
	"github.com/zhanbolat/datecore/internal/db"
	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/internal/events"
	"github.com/zhanbolat/datecore/internal/profile"
	"github.com/zhanbolat/datecore/internal/repository"
	"github.com/zhanbolat/datecore/internal/service/matching"
	"github.com/zhanbolat/datecore/internal/service/scoring"
)

type fakeProvider struct {
	mu       sync.Mutex
	profiles map[uint64]profile.Profile
}

func (f *fakeProvider) GetProfile(ctx context.Context, userID uint64) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, svcErr.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProvider) GetManyProfiles(ctx context.Context, userIDs []uint64) ([]profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]profile.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type testEnv struct {
	db       *gorm.DB
	redis    *miniredis.Miniredis
	cache    *cache.RedisCache
	likes    *repository.LikeMatchRepository
	ratings  *repository.RatingRepository
	prefs    *repository.PreferenceRepository
	provider *fakeProvider
	scores   *scoring.Service
}

func setupMatching(t *testing.T) (*matching.Service, *testEnv) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	// serialize writes so concurrent protocol tests exercise ordering,
	// not SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	mr := miniredis.RunT(t)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Search.MinProfiles = 10

	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { rc.Client.Close() })

	provider := &fakeProvider{profiles: map[uint64]profile.Profile{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(database, rc, events.NewRedisPublisher(rc.Client, time.Second), provider, logger)

	scores := scoring.NewService(appCtx, cfg)
	env := &testEnv{
		db:       database,
		redis:    mr,
		cache:    rc,
		likes:    repository.NewLikeMatchRepository(database),
		ratings:  repository.NewRatingRepository(database),
		prefs:    repository.NewPreferenceRepository(database),
		provider: provider,
		scores:   scores,
	}
	return matching.NewService(appCtx, cfg, scores), env
}

func seedScore(t *testing.T, env *testEnv, profileID uint64, score float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.ratings.CreateOrUpdate(ctx, profileID, score))
	require.NoError(t, env.ratings.EnsureStats(ctx, profileID))
}

func streamLen(t *testing.T, env *testEnv, topic string) int64 {
	t.Helper()
	n, err := env.cache.Client.XLen(context.Background(), topic).Result()
	require.NoError(t, err)
	return n
}

func TestRecordLikeHalfMatch(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	outcome, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)
	assert.Equal(t, matching.OutcomeHalfMatch, outcome)

	// rated user got the Elo delta
	row, err := env.scores.GetRating(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1016.0, row.RatingScore)

	// rater's score is untouched
	row, err = env.scores.GetRating(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, row.RatingScore)

	// no match yet
	match, err := env.likes.GetMatch(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, match)

	assert.EqualValues(t, 1, streamLen(t, env, events.TopicLikes))
	assert.EqualValues(t, 0, streamLen(t, env, events.TopicMatches))
}

func TestMutualLikeCreatesMatch(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	_, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)

	outcome, err := svc.RecordAction(ctx, 2, 1, "bob", "alice", matching.ActionLike)
	require.NoError(t, err)
	assert.Equal(t, matching.OutcomeNewMatch, outcome)

	match, err := env.likes.GetMatch(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, uint64(1), match.User1ID)
	assert.Equal(t, uint64(2), match.User2ID)
	assert.Equal(t, "alice", match.User1Username)
	assert.Equal(t, "bob", match.User2Username)

	// both sides got the like delta and then the match bonus
	row1, err := env.scores.GetRating(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1040.392, row1.RatingScore, 0.001)
	row2, err := env.scores.GetRating(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1040.968, row2.RatingScore, 0.001)

	for _, id := range []uint64{1, 2} {
		stats, err := env.scores.GetStats(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), stats.MatchesCount)
		assert.Equal(t, uint64(1), stats.LikesGiven)
		assert.Equal(t, uint64(1), stats.LikesReceived)
	}

	assert.EqualValues(t, 2, streamLen(t, env, events.TopicLikes))
	assert.EqualValues(t, 1, streamLen(t, env, events.TopicMatches))
}

func TestRecordActionDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	_, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)

	// replay of the same action, with either type
	_, err = svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.Error(t, err)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
	_, err = svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionDislike)
	require.Error(t, err)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	// the rejected replays mutated nothing
	row, err := env.scores.GetRating(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1016.0, row.RatingScore)
	stats, err := env.scores.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.LikesGiven)
	assert.EqualValues(t, 1, streamLen(t, env, events.TopicLikes))
}

func TestRecordDislike(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	outcome, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionDislike)
	require.NoError(t, err)
	assert.Equal(t, matching.OutcomeDisliked, outcome)

	row, err := env.scores.GetRating(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 984.0, row.RatingScore)

	stats, err := env.scores.GetStats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.DislikesReceived)

	// dislikes publish nothing
	assert.EqualValues(t, 0, streamLen(t, env, events.TopicLikes))

	// a dislike on the reverse row never completes a match
	outcome, err = svc.RecordAction(ctx, 2, 1, "bob", "alice", matching.ActionLike)
	require.NoError(t, err)
	assert.Equal(t, matching.OutcomeHalfMatch, outcome)
}

func TestRecordActionAlreadyMatched(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	// the match row exists before the like rows (as after a lost race)
	_, _, err := env.likes.CreateMatch(ctx, 1, 2, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)

	outcome, err := svc.RecordAction(ctx, 2, 1, "bob", "alice", matching.ActionLike)
	require.NoError(t, err)
	assert.Equal(t, matching.OutcomeAlreadyMatched, outcome)

	// no second bonus, no match event
	assert.EqualValues(t, 0, streamLen(t, env, events.TopicMatches))
}

func TestRecordActionValidation(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)

	_, err := svc.RecordAction(ctx, 1, 1, "alice", "alice", matching.ActionLike)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.Action("superlike"))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

// Two users liking each other from two goroutines must always end with
// exactly one match row and exactly one new-match outcome, whatever the
// interleaving.
func TestConcurrentMutualLike(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)

	const rounds = 1000
	for i := 0; i < rounds; i++ {
		a := uint64(1000 + 2*i)
		b := a + 1
		seedScore(t, env, a, 1000)
		seedScore(t, env, b, 1000)

		type result struct {
			outcome matching.Outcome
			err     error
		}
		results := make(chan result, 2)
		var wg sync.WaitGroup
		for _, pair := range [][2]uint64{{a, b}, {b, a}} {
			wg.Add(1)
			go func(rater, rated uint64) {
				defer wg.Done()
				out, err := svc.RecordAction(ctx, rater, rated, "x", "y", matching.ActionLike)
				results <- result{outcome: out, err: err}
			}(pair[0], pair[1])
		}
		wg.Wait()
		close(results)

		newMatches := 0
		for res := range results {
			require.NoError(t, res.err, "round %d", i)
			if res.outcome == matching.OutcomeNewMatch {
				newMatches++
			}
		}
		require.Equal(t, 1, newMatches, "round %d: expected exactly one new-match outcome", i)

		var count int64
		require.NoError(t, env.db.Model(&db.Match{}).
			Where("user1_id = ? AND user2_id = ?", a, b).
			Count(&count).Error)
		require.Equal(t, int64(1), count, "round %d: expected exactly one match row", i)
	}
}

func TestUpsertPreferenceCarriesRating(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 905)

	lat, lon := 43.24, 76.89
	require.NoError(t, svc.UpsertPreference(ctx, matching.PreferenceInput{
		UserID: 1, Age: 25, Gender: db.GenderMale,
		Latitude: &lat, Longitude: &lon,
		PreferredMinAge: 20, PreferredMaxAge: 30,
	}))

	pref, err := env.prefs.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, 905.0, pref.Rating)
	// empty preferred gender defaults to any
	assert.Equal(t, db.GenderAny, pref.PreferredGender)
}

func TestListMatches(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	for id := uint64(1); id <= 3; id++ {
		seedScore(t, env, id, 1000)
	}

	_, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordAction(ctx, 2, 1, "bob", "alice", matching.ActionLike)
	require.NoError(t, err)

	matches, next, err := svc.ListMatches(ctx, 1, nil, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Nil(t, next)
	assert.Equal(t, uint64(2), matches[0].UserID)
	assert.Equal(t, "bob", matches[0].Username)
}

func TestDeleteProfileCascade(t *testing.T) {
	ctx := context.Background()
	svc, env := setupMatching(t)
	seedScore(t, env, 1, 1000)
	seedScore(t, env, 2, 1000)

	lat, lon := 43.24, 76.89
	require.NoError(t, svc.UpsertPreference(ctx, matching.PreferenceInput{
		UserID: 1, Age: 25, Gender: db.GenderMale,
		Latitude: &lat, Longitude: &lon,
		PreferredMinAge: 20, PreferredMaxAge: 30,
	}))
	_, err := svc.RecordAction(ctx, 1, 2, "alice", "bob", matching.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordAction(ctx, 2, 1, "bob", "alice", matching.ActionLike)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProfile(ctx, 1))

	like, err := env.likes.GetLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, like)
	match, err := env.likes.GetMatch(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, match)
	pref, err := env.prefs.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, pref)
	_, err = env.scores.GetRating(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	// the partner's data survives
	_, err = env.scores.GetRating(ctx, 2)
	require.NoError(t, err)
}
