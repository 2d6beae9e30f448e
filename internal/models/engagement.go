package models

import (
	"time"
)

// ReactionType is the kind of reaction a user left on a post.
type ReactionType string

// Reaction kinds
const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionHaha  ReactionType = "haha"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

// ReactionTypes lists every valid reaction kind.
var ReactionTypes = []ReactionType{ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry}

// Reaction is one user's reaction to a post.
type Reaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_reactions_post_user" json:"post_id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_reactions_post_user" json:"user_id"`
	Type      ReactionType `gorm:"type:varchar(10);not null" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// Comment is a comment on a post. Replies carry the id of their parent and
// do not count towards the post's comment total.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Replies   []Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
