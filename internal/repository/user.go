package repository

import (
	"context"
	"errors"

	"unera/internal/models"
	"unera/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines read access to accounts. Returned users have
// Followers populated from the follows table.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("get_by_id", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	if err := r.attachFollowers(ctx, []*models.User{&user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByIDs returns the users among ids that exist. Unknown ids are skipped.
func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	defer observability.TrackQuery("list_by_ids", "users")()

	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachFollowers(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) attachFollowers(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[uint]*models.User, len(users))
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		u.Followers = []uint{}
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	var follows []models.Follow
	if err := r.db.WithContext(ctx).
		Select("follower_id", "followee_id").
		Where("followee_id IN ?", ids).
		Order("id").
		Find(&follows).Error; err != nil {
		return models.NewInternalError(err)
	}
	for _, f := range follows {
		if u, ok := byID[f.FolloweeID]; ok {
			u.Followers = append(u.Followers, f.FollowerID)
		}
	}
	return nil
}
