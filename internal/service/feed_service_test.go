package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"unera/internal/cache"
	"unera/internal/featureflags"
	"unera/internal/models"
	"unera/internal/ranking"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type postRepoStub struct {
	listCandidatesFn func(ctx context.Context, limit int) ([]*models.Post, error)
	getByIDFn        func(ctx context.Context, id uint) (*models.Post, error)
}

func (s *postRepoStub) ListCandidates(ctx context.Context, limit int) ([]*models.Post, error) {
	return s.listCandidatesFn(ctx, limit)
}

func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}

type userRepoStub struct {
	getByIDFn   func(ctx context.Context, id uint) (*models.User, error)
	listByIDsFn func(ctx context.Context, ids []uint) ([]*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}

func (s *userRepoStub) ListByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	return s.listByIDsFn(ctx, ids)
}

// fixture is a tiny in-memory social graph shared by the stubs.
type fixture struct {
	posts      []*models.Post
	users      map[uint]*models.User
	listCalls  int
	lastLimit  int
	lookupIDs  []uint
	viewerErrs error
}

func newFixture() *fixture {
	old := fixedNow.Add(-365 * 24 * time.Hour)
	return &fixture{
		users: map[uint]*models.User{
			1: {ID: 1, Username: "big", JoinedDate: &old, Followers: manyFollowers(6000)},
			2: {ID: 2, Username: "small", JoinedDate: &old, Followers: manyFollowers(100), Location: "Porto"},
			9: {ID: 9, Username: "viewer", JoinedDate: &old, Location: "Porto", Followers: []uint{1}},
		},
		posts: []*models.Post{
			{ID: 10, UserID: 1, CreatedAt: fixedNow.Add(-1 * time.Hour), Shares: 5},
			{ID: 20, UserID: 2, CreatedAt: fixedNow.Add(-2 * time.Hour), Shares: 5},
			{ID: 30, UserID: 77, CreatedAt: fixedNow, Shares: 500},
			{ID: 40, UserID: 2, CreatedAt: fixedNow.Add(-90 * time.Hour), Views: 10},
		},
	}
}

func manyFollowers(n int) []uint {
	out := make([]uint, n)
	for i := range out {
		out[i] = uint(1000 + i)
	}
	return out
}

func (f *fixture) repos() (*postRepoStub, *userRepoStub) {
	posts := &postRepoStub{
		listCandidatesFn: func(_ context.Context, limit int) ([]*models.Post, error) {
			f.listCalls++
			f.lastLimit = limit
			return f.posts, nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			for _, p := range f.posts {
				if p.ID == id {
					return p, nil
				}
			}
			return nil, models.NewNotFoundError("Post", id)
		},
	}
	users := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			if f.viewerErrs != nil {
				return nil, f.viewerErrs
			}
			if u, ok := f.users[id]; ok {
				return u, nil
			}
			return nil, models.NewNotFoundError("User", id)
		},
		listByIDsFn: func(_ context.Context, ids []uint) ([]*models.User, error) {
			f.lookupIDs = ids
			var out []*models.User
			for _, id := range ids {
				if u, ok := f.users[id]; ok {
					out = append(out, u)
				}
			}
			return out, nil
		},
	}
	return posts, users
}

func newTestService(f *fixture, flags string) *FeedService {
	posts, users := f.repos()
	return NewFeedService(posts, users, nil, featureflags.NewManager(flags), FeedOptions{
		CandidateLimit: 50,
		Now:            func() time.Time { return fixedNow },
	})
}

func entryIDs(items []FeedEntry) []uint {
	out := make([]uint, len(items))
	for i, e := range items {
		out[i] = e.Post.ID
	}
	return out
}

func TestFeedService_GetFeed_RanksCandidates(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "")

	page, err := svc.GetFeed(context.Background(), FeedInput{})
	require.NoError(t, err)

	assert.True(t, page.Ranked)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, DefaultFeedPageSize, page.Limit)
	assert.Equal(t, 50, f.lastLimit)
	assert.ElementsMatch(t, []uint{1, 2, 77}, f.lookupIDs, "authors are looked up once each")

	// the unknown author's post sinks to the bottom despite its engagement
	assert.Equal(t, []uint{10, 20, 40, 30}, entryIDs(page.Items))
	assert.Equal(t, 0.0, page.Items[3].Score)
	assert.Equal(t, "big", page.Items[0].Post.User.Username, "entries carry their author")
	assert.Zero(t, page.Items[3].Post.User.ID)
	assert.True(t, fixedNow.Equal(page.GeneratedAt))

	for i := 1; i < len(page.Items); i++ {
		assert.GreaterOrEqual(t, page.Items[i-1].Score, page.Items[i].Score)
	}
}

func TestFeedService_GetFeed_ViewerChangesOrder(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "")

	anon, err := svc.GetFeed(context.Background(), FeedInput{})
	require.NoError(t, err)
	seen, err := svc.GetFeed(context.Background(), FeedInput{ViewerID: 9})
	require.NoError(t, err)

	scoreOf := func(p *FeedPage, id uint) float64 {
		for _, e := range p.Items {
			if e.Post.ID == id {
				return e.Score
			}
		}
		t.Fatalf("post %d missing", id)
		return 0
	}

	// the viewer lists author 1 among their followers
	assert.InDelta(t, scoreOf(anon, 10)*2.5, scoreOf(seen, 10), 1e-9)
	// author 2 shares the viewer's location
	assert.InDelta(t, scoreOf(anon, 20)*1.4, scoreOf(seen, 20), 1e-9)
}

func TestFeedService_GetFeed_UnknownViewerIsAnonymous(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "")

	anon, err := svc.GetFeed(context.Background(), FeedInput{})
	require.NoError(t, err)
	ghost, err := svc.GetFeed(context.Background(), FeedInput{ViewerID: 404})
	require.NoError(t, err)

	assert.Equal(t, anon.Items, ghost.Items)
}

func TestFeedService_GetFeed_ViewerLookupError(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	f.viewerErrs = models.NewInternalError(errors.New("db down"))
	svc := newTestService(f, "")

	_, err := svc.GetFeed(context.Background(), FeedInput{ViewerID: 9})
	assert.Error(t, err)
}

func TestFeedService_GetFeed_CandidateError(t *testing.T) {
	cache.SetClient(nil)
	posts := &postRepoStub{listCandidatesFn: func(context.Context, int) ([]*models.Post, error) {
		return nil, errors.New("boom")
	}}
	svc := NewFeedService(posts, &userRepoStub{}, nil, nil, FeedOptions{})

	_, err := svc.GetFeed(context.Background(), FeedInput{})
	assert.EqualError(t, err, "boom")
}

func TestFeedService_GetFeed_ChronologicalWhenFlagOff(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "ranked_feed=off")

	page, err := svc.GetFeed(context.Background(), FeedInput{ViewerID: 9})
	require.NoError(t, err)

	assert.False(t, page.Ranked)
	assert.Equal(t, []uint{10, 20, 30, 40}, entryIDs(page.Items))
	for _, e := range page.Items {
		assert.Zero(t, e.Score)
	}
}

func TestFeedService_GetFeed_Pagination(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "")

	tests := []struct {
		name   string
		in     FeedInput
		ids    []uint
		limit  int
		offset int
	}{
		{"first page", FeedInput{Limit: 2}, []uint{10, 20}, 2, 0},
		{"second page", FeedInput{Limit: 2, Offset: 2}, []uint{40, 30}, 2, 2},
		{"partial last page", FeedInput{Limit: 3, Offset: 3}, []uint{30}, 3, 3},
		{"past the end", FeedInput{Limit: 2, Offset: 10}, []uint{}, 2, 10},
		{"negative offset", FeedInput{Limit: 1, Offset: -5}, []uint{10}, 1, 0},
		{"limit capped", FeedInput{Limit: 1000}, []uint{10, 20, 40, 30}, MaxFeedPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.GetFeed(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.ids, entryIDs(page.Items))
			assert.Equal(t, tt.limit, page.Limit)
			assert.Equal(t, tt.offset, page.Offset)
			assert.Equal(t, 4, page.Total)
		})
	}
}

func TestFeedService_GetFeed_UsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		_ = rdb.Close()
		cache.SetClient(nil)
	})

	f := newFixture()
	svc := newTestService(f, "")
	ctx := context.Background()

	first, err := svc.GetFeed(ctx, FeedInput{Limit: 2})
	require.NoError(t, err)
	second, err := svc.GetFeed(ctx, FeedInput{Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, f.listCalls, "pages after the first are cut from the cached ranking")
	assert.Equal(t, []uint{10, 20}, entryIDs(first.Items))
	assert.Equal(t, []uint{40, 30}, entryIDs(second.Items))
	assert.True(t, mr.Exists(cache.FeedKey(0)))

	_, err = svc.GetFeed(ctx, FeedInput{ViewerID: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, f.listCalls, "each viewer has their own cached ranking")

	_, err = svc.GetFeed(ctx, FeedInput{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 3, f.listCalls, "refresh discards the cached ranking")

	_, err = svc.GetFeed(ctx, FeedInput{ViewerID: 9})
	require.NoError(t, err)
	assert.Equal(t, 3, f.listCalls, "refreshing one viewer leaves the others cached")
}

func TestFeedService_DisableCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		_ = rdb.Close()
		cache.SetClient(nil)
	})

	f := newFixture()
	posts, users := f.repos()
	svc := NewFeedService(posts, users, nil, featureflags.NewManager(""), FeedOptions{
		CandidateLimit: 50,
		DisableCache:   true,
		Now:            func() time.Time { return fixedNow },
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		page, err := svc.GetFeed(ctx, FeedInput{})
		require.NoError(t, err)
		assert.Equal(t, []uint{10, 20, 40, 30}, entryIDs(page.Items))
	}
	assert.Equal(t, 2, f.listCalls, "every request ranks afresh")

	n, err := svc.WarmAnonymousFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, mr.Keys(), "nothing is written to redis")
}

func TestFeedService_WarmAnonymousFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		_ = rdb.Close()
		cache.SetClient(nil)
	})

	f := newFixture()
	svc := newTestService(f, "")
	ctx := context.Background()

	n, err := svc.WarmAnonymousFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, mr.Exists(cache.FeedKey(0)))

	page, err := svc.GetFeed(ctx, FeedInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.listCalls, "warmed feed is served from cache")
	assert.Equal(t, []uint{10, 20, 40, 30}, entryIDs(page.Items))
}

func TestFeedService_ExplainPost(t *testing.T) {
	cache.SetClient(nil)
	f := newFixture()
	svc := newTestService(f, "")
	ctx := context.Background()

	t.Run("viewer related to author", func(t *testing.T) {
		got, err := svc.ExplainPost(ctx, 10, 9)
		require.NoError(t, err)
		assert.True(t, got.Resolved)
		assert.Equal(t, uint(1), got.AuthorID)
		assert.Equal(t, uint(9), got.ViewerID)
		assert.True(t, got.Breakdown.Related)
		assert.True(t, got.Breakdown.Monopoly)
		assert.InDelta(t, 1.0, got.Breakdown.AgeHours, 1e-9)

		author := f.users[1].ToRanking()
		viewer := f.users[9].ToRanking()
		want := ranking.CalculatePostScore(f.posts[0].ToRanking(), &viewer, author, fixedNow)
		assert.Equal(t, want, got.Breakdown.Score)
	})

	t.Run("unknown viewer explains anonymously", func(t *testing.T) {
		got, err := svc.ExplainPost(ctx, 20, 404)
		require.NoError(t, err)
		assert.Equal(t, uint(0), got.ViewerID)
		assert.False(t, got.Breakdown.Local)
	})

	t.Run("unknown author", func(t *testing.T) {
		got, err := svc.ExplainPost(ctx, 30, 0)
		require.NoError(t, err)
		assert.False(t, got.Resolved)
		assert.Zero(t, got.Breakdown.Score)
	})

	t.Run("unknown post", func(t *testing.T) {
		_, err := svc.ExplainPost(ctx, 999, 0)
		assert.True(t, models.IsNotFound(err))
	})
}

func TestNormalizePage(t *testing.T) {
	l, o := normalizePage(0, 0)
	assert.Equal(t, DefaultFeedPageSize, l)
	assert.Equal(t, 0, o)

	l, o = normalizePage(500, -1)
	assert.Equal(t, MaxFeedPageSize, l)
	assert.Equal(t, 0, o)
}
