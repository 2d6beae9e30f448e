// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"unera/internal/ranking"

	"gorm.io/gorm"
)

// User represents an account whose posts can appear in the feed.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio"`
	Location string `gorm:"index" json:"location,omitempty"`
	// JoinedDate is optional; accounts without one rank as newly joined.
	JoinedDate *time.Time `json:"joined_date,omitempty"`
	// Followers holds the ids of accounts following this user (computed from follows)
	Followers []uint         `gorm:"-" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Follow records that FollowerID follows FolloweeID.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `gorm:"foreignKey:FollowerID" json:"-"`
	Followee User `gorm:"foreignKey:FolloweeID" json:"-"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// ToRanking returns the scoring view of u.
func (u *User) ToRanking() ranking.User {
	ru := ranking.User{
		ID:        u.ID,
		Followers: u.Followers,
		Location:  u.Location,
	}
	if u.JoinedDate != nil {
		ru.JoinedDate = *u.JoinedDate
	}
	return ru
}
