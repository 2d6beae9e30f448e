// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"unera/internal/models"
	"unera/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines read access to feed posts. Returned posts carry
// their reaction and top-level comment counts.
type PostRepository interface {
	ListCandidates(ctx context.Context, limit int) ([]*models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// ListCandidates returns up to limit of the newest public posts.
func (r *postRepository) ListCandidates(ctx context.Context, limit int) ([]*models.Post, error) {
	defer observability.TrackQuery("list_candidates", "posts")()

	var posts []*models.Post
	err := withEngagementCounts(r.db.WithContext(ctx)).
		Where("posts.visibility = ?", models.VisibilityPublic).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", "posts")()

	var post models.Post
	err := withEngagementCounts(r.db.WithContext(ctx)).
		Preload("User").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// withEngagementCounts selects every post column plus the reaction count and
// the number of comments that are not replies.
func withEngagementCounts(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).Select("posts.*, " +
		"(SELECT COUNT(*) FROM reactions WHERE reactions.post_id = posts.id) AS reactions_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.parent_id IS NULL) AS comments_count")
}
