// Package service holds the feed use cases that sit between the HTTP layer
// and the repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"unera/internal/cache"
	"unera/internal/featureflags"
	"unera/internal/middleware"
	"unera/internal/models"
	"unera/internal/observability"
	"unera/internal/ranking"
	"unera/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultFeedPageSize   = 20
	MaxFeedPageSize       = 100
	DefaultCandidateLimit = 500
)

// FeedOptions tunes a FeedService. Zero values select the defaults.
type FeedOptions struct {
	CandidateLimit int
	CacheTTL       time.Duration
	// DisableCache ranks on every request and never touches Redis.
	DisableCache bool
	// Now is the clock used for post and account ages.
	Now func() time.Time
}

// FeedService builds ranked feeds for viewers.
type FeedService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	scorer   *ranking.Scorer
	flags    *featureflags.Manager
	opts     FeedOptions
}

// FeedInput selects a page of a viewer's feed. ViewerID 0 is an anonymous viewer.
type FeedInput struct {
	ViewerID uint
	Limit    int
	Offset   int
	// Refresh drops the viewer's cached ranking before reading.
	Refresh bool
}

// FeedEntry is one post in a feed with the score it was ranked by.
type FeedEntry struct {
	Post  models.Post `json:"post"`
	Score float64     `json:"score"`
}

// RankedFeed is the full ordered candidate list for one viewer. It is what
// gets cached; pages are cut from it.
type RankedFeed struct {
	Ranked      bool        `json:"ranked"`
	GeneratedAt time.Time   `json:"generated_at"`
	Entries     []FeedEntry `json:"entries"`
}

// FeedPage is one page of a viewer's feed.
type FeedPage struct {
	Items       []FeedEntry `json:"items"`
	Total       int         `json:"total"`
	Limit       int         `json:"limit"`
	Offset      int         `json:"offset"`
	Ranked      bool        `json:"ranked"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// ScoreExplanation is the scoring breakdown of one post for one viewer.
type ScoreExplanation struct {
	PostID    uint              `json:"post_id"`
	AuthorID  uint              `json:"author_id"`
	ViewerID  uint              `json:"viewer_id"`
	Resolved  bool              `json:"resolved"`
	Breakdown ranking.Breakdown `json:"breakdown"`
}

func NewFeedService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	scorer *ranking.Scorer,
	flags *featureflags.Manager,
	opts FeedOptions,
) *FeedService {
	if scorer == nil {
		scorer = ranking.NewScorer(nil)
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.FeedTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FeedService{
		postRepo: postRepo,
		userRepo: userRepo,
		scorer:   scorer,
		flags:    flags,
		opts:     opts,
	}
}

// GetFeed returns one page of the viewer's feed. The full ordering is
// cached per viewer, so consecutive pages come from the same ranking.
func (s *FeedService) GetFeed(ctx context.Context, in FeedInput) (*FeedPage, error) {
	ctx, span := observability.StartSpan(ctx, "feed.get",
		attribute.Int64("viewer.id", int64(in.ViewerID)),
		attribute.Int("page.limit", in.Limit),
		attribute.Int("page.offset", in.Offset),
	)
	defer span.End()

	limit, offset := normalizePage(in.Limit, in.Offset)

	feed, err := s.rankedFeed(ctx, in.ViewerID, in.Refresh)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	page := &FeedPage{
		Items:       []FeedEntry{},
		Total:       len(feed.Entries),
		Limit:       limit,
		Offset:      offset,
		Ranked:      feed.Ranked,
		GeneratedAt: feed.GeneratedAt,
	}
	if offset < len(feed.Entries) {
		end := min(offset+limit, len(feed.Entries))
		page.Items = feed.Entries[offset:end]
	}
	span.SetAttributes(attribute.Int("feed.total", page.Total), attribute.Bool("feed.ranked", page.Ranked))
	return page, nil
}

func (s *FeedService) rankedFeed(ctx context.Context, viewerID uint, refresh bool) (*RankedFeed, error) {
	if s.opts.DisableCache {
		return s.buildFeed(ctx, viewerID)
	}
	if refresh {
		cache.InvalidateFeed(ctx, viewerID)
	}

	var feed RankedFeed
	err := cache.Aside(ctx, cache.FeedKey(viewerID), &feed, s.opts.CacheTTL, func() error {
		built, err := s.buildFeed(ctx, viewerID)
		if err != nil {
			return err
		}
		feed = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// WarmAnonymousFeed rebuilds the anonymous feed and stores it in the cache
// regardless of what is currently cached. It returns the number of posts ranked.
func (s *FeedService) WarmAnonymousFeed(ctx context.Context) (int, error) {
	ctx, span := observability.StartSpan(ctx, "feed.warm")
	defer span.End()

	feed, err := s.buildFeed(ctx, 0)
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}
	if s.opts.DisableCache {
		return len(feed.Entries), nil
	}
	if err := cache.Store(ctx, cache.FeedKey(0), feed, s.opts.CacheTTL); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to store warmed feed", slog.String("error", err.Error()))
	}
	return len(feed.Entries), nil
}

// ExplainPost scores a single post for viewerID and returns every factor.
// A post whose author no longer exists is reported unresolved with a zero score.
func (s *FeedService) ExplainPost(ctx context.Context, postID, viewerID uint) (*ScoreExplanation, error) {
	ctx, span := observability.StartSpan(ctx, "feed.explain",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("viewer.id", int64(viewerID)),
	)
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	out := &ScoreExplanation{PostID: post.ID, AuthorID: post.UserID, ViewerID: viewerID}

	author, err := s.userRepo.GetByID(ctx, post.UserID)
	if err != nil {
		if models.IsNotFound(err) {
			return out, nil
		}
		observability.RecordError(span, err)
		return nil, err
	}

	viewer, err := s.resolveViewer(ctx, viewerID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if viewer == nil {
		out.ViewerID = 0
	}

	out.Resolved = true
	out.Breakdown = s.scorer.Explain(post.ToRanking(), viewer, author.ToRanking(), s.opts.Now())
	return out, nil
}

func (s *FeedService) buildFeed(ctx context.Context, viewerID uint) (*RankedFeed, error) {
	posts, err := s.postRepo.ListCandidates(ctx, s.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		authorIDs = append(authorIDs, p.UserID)
	}

	authors, err := s.userRepo.ListByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	viewer, err := s.resolveViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	feed := &RankedFeed{
		GeneratedAt: now,
		Entries:     make([]FeedEntry, 0, len(posts)),
	}

	authorByID := make(map[uint]*models.User, len(authors))
	for _, a := range authors {
		authorByID[a.ID] = a
	}
	withAuthor := func(p *models.Post) models.Post {
		out := *p
		if a, ok := authorByID[p.UserID]; ok {
			out.User = *a
		}
		return out
	}

	if !s.flags.EnabledOr(featureflags.FlagRankedFeed, viewerID, true) {
		for _, p := range posts {
			feed.Entries = append(feed.Entries, FeedEntry{Post: withAuthor(p)})
		}
		return feed, nil
	}

	candidates := make([]ranking.Post, len(posts))
	postByID := make(map[uint]*models.Post, len(posts))
	for i, p := range posts {
		candidates[i] = p.ToRanking()
		postByID[p.ID] = p
	}
	users := make([]ranking.User, len(authors))
	for i, a := range authors {
		users[i] = a.ToRanking()
	}

	start := time.Now()
	scored := s.scorer.RankScored(candidates, viewer, users, now)
	observability.FeedRankDuration.Observe(time.Since(start).Seconds())
	observability.FeedPostsRanked.Add(float64(len(scored)))

	unresolved := 0
	for _, sc := range scored {
		if !sc.Resolved {
			unresolved++
		}
		feed.Entries = append(feed.Entries, FeedEntry{Post: withAuthor(postByID[sc.Post.ID]), Score: sc.Score})
	}
	if unresolved > 0 {
		observability.FeedUnresolvedAuthors.Add(float64(unresolved))
		middleware.Logger.WarnContext(ctx, "ranked posts with unknown authors",
			slog.Int("unresolved", unresolved),
			slog.Int("candidates", len(posts)))
	}

	feed.Ranked = true
	return feed, nil
}

// resolveViewer loads the ranking view of viewerID. Anonymous and unknown
// viewers resolve to nil.
func (s *FeedService) resolveViewer(ctx context.Context, viewerID uint) (*ranking.User, error) {
	if viewerID == 0 {
		return nil, nil
	}
	u, err := s.userRepo.GetByID(ctx, viewerID)
	if err != nil {
		if models.IsNotFound(err) {
			middleware.Logger.InfoContext(ctx, "unknown viewer, ranking anonymously",
				slog.Any("viewer_id", viewerID))
			return nil, nil
		}
		return nil, err
	}
	ru := u.ToRanking()
	return &ru, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultFeedPageSize
	}
	if limit > MaxFeedPageSize {
		limit = MaxFeedPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
