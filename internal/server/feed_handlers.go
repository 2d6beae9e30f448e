package server

import (
	"unera/internal/middleware"
	"unera/internal/models"
	"unera/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed. refresh=true discards the viewer's cached
// ranking before the page is read.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultFeedPageSize)

	feed, err := s.feed.GetFeed(c.UserContext(), service.FeedInput{
		ViewerID: viewerID(c),
		Limit:    page.Limit,
		Offset:   page.Offset,
		Refresh:  c.QueryBool("refresh"),
	})
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	middleware.SetFeedPage(c, middleware.FeedPageInfo{
		Total:  feed.Total,
		Limit:  feed.Limit,
		Offset: feed.Offset,
		Ranked: feed.Ranked,
	})
	return c.JSON(feed)
}

// ExplainPostScore handles GET /api/feed/posts/:id/score
func (s *Server) ExplainPostScore(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	explanation, err := s.feed.ExplainPost(c.UserContext(), postID, viewerID(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(explanation)
}

// GetFeatureFlags returns configured feature flags and their state for the current viewer.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(viewerID(c)),
	})
}
