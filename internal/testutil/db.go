// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"unera/internal/database"
	"unera/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB returns a migrated in-memory SQLite database private to t.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to :memory: would get its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user named username with an optional join date.
func CreateUser(t *testing.T, db *gorm.DB, username, location string, joined *time.Time) *models.User {
	t.Helper()
	u := &models.User{Username: username, Name: username, Location: location, JoinedDate: joined}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Follow records that follower follows followee.
func Follow(t *testing.T, db *gorm.DB, follower, followee uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: follower, FolloweeID: followee}).Error)
}

// CreatePost inserts a public post by author created at createdAt.
func CreatePost(t *testing.T, db *gorm.DB, author uint, createdAt time.Time, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:     author,
		Content:    "post",
		PostType:   models.PostTypeText,
		Visibility: models.VisibilityPublic,
		CreatedAt:  createdAt,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// React adds a reaction of kind to post from user.
func React(t *testing.T, db *gorm.DB, post, user uint, kind models.ReactionType) {
	t.Helper()
	require.NoError(t, db.Create(&models.Reaction{PostID: post, UserID: user, Type: kind}).Error)
}

// Comment adds a comment on post from user. parent is nil for top-level comments.
func Comment(t *testing.T, db *gorm.DB, post, user uint, parent *uint) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: post, UserID: user, ParentID: parent, Text: "nice"}
	require.NoError(t, db.Create(c).Error)
	return c
}
