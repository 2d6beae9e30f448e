// Package seed creates demo data for development and testing: users with a
// follow graph, posts spread over time, reactions and comments.
package seed

import (
	"fmt"
	"time"

	"unera/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db        *gorm.DB
	faker     *gofakeit.Faker
	now       time.Time
	locations []string
	seq       int
}

// NewFactory returns a factory whose output is fully determined by seed and now.
func NewFactory(db *gorm.DB, seed int64, now time.Time) *Factory {
	faker := gofakeit.New(seed)
	locations := make([]string, 6)
	for i := range locations {
		locations[i] = faker.City()
	}
	return &Factory{db: db, faker: faker, now: now, locations: locations}
}

// BuildUser returns an unsaved user. One in five has no join date, which
// the ranker treats as a brand new account.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.seq++
	u := &models.User{
		Username: fmt.Sprintf("%s%d", f.faker.Username(), f.seq),
		Name:     f.faker.Name(),
		Avatar:   f.faker.ImageURL(128, 128),
		Bio:      f.faker.Sentence(8),
	}
	if f.faker.Float64() < 0.7 {
		u.Location = f.faker.RandomString(f.locations)
	}
	if f.faker.Float64() >= 0.2 {
		joined := f.faker.DateRange(f.now.AddDate(-2, 0, 0), f.now)
		u.JoinedDate = &joined
	}
	for _, o := range overrides {
		o(u)
	}
	return u
}

// CreateUser builds and saves a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	u := f.BuildUser(overrides...)
	if err := f.db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// BuildPost returns an unsaved post by author created within the last maxAgeDays.
func (f *Factory) BuildPost(author *models.User, maxAgeDays int, overrides ...func(*models.Post)) *models.Post {
	if maxAgeDays <= 0 {
		maxAgeDays = 14
	}
	p := &models.Post{
		UserID:     author.ID,
		Content:    f.faker.Paragraph(1, 3, 12, " "),
		PostType:   models.PostTypeText,
		Visibility: models.VisibilityPublic,
		Location:   author.Location,
		Category:   f.faker.RandomString([]string{"news", "art", "music", "sports", "tech", "food"}),
		Shares:     f.faker.Number(0, 20),
		Views:      f.faker.Number(0, 2000),
		CreatedAt:  f.faker.DateRange(f.now.AddDate(0, 0, -maxAgeDays), f.now),
	}

	switch roll := f.faker.Float64(); {
	case roll < 0.2:
		p.PostType = models.PostTypeImage
		p.ImageURL = f.faker.ImageURL(800, 600)
	case roll < 0.25:
		p.PostType = models.PostTypeVideo
		p.VideoURL = f.faker.URL()
	}

	switch roll := f.faker.Float64(); {
	case roll < 0.08:
		p.Visibility = models.VisibilityFriends
	case roll < 0.12:
		p.Visibility = models.VisibilityOnlyMe
	}

	for _, o := range overrides {
		o(p)
	}
	return p
}

// CreatePost builds and saves a post.
func (f *Factory) CreatePost(author *models.User, maxAgeDays int, overrides ...func(*models.Post)) (*models.Post, error) {
	p := f.BuildPost(author, maxAgeDays, overrides...)
	if err := f.db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// CreateFollow records that follower follows followee.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	if err := f.db.Create(&models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}).Error; err != nil {
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

// CreateReaction adds a random reaction from user to post.
func (f *Factory) CreateReaction(user *models.User, post *models.Post) error {
	r := &models.Reaction{
		PostID: post.ID,
		UserID: user.ID,
		Type:   models.ReactionTypes[f.faker.Number(0, len(models.ReactionTypes)-1)],
	}
	if err := f.db.Create(r).Error; err != nil {
		return fmt.Errorf("create reaction: %w", err)
	}
	return nil
}

// CreateComment adds a comment from user on post, as a reply when parent is set.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	c := &models.Comment{
		PostID: post.ID,
		UserID: user.ID,
		Text:   f.faker.Sentence(f.faker.Number(3, 15)),
		Likes:  f.faker.Number(0, 30),
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := f.db.Create(c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}
