package models

import (
	"time"

	"unera/internal/ranking"

	"gorm.io/gorm"
)

// Post types
const (
	PostTypeText    = "text"
	PostTypeImage   = "image"
	PostTypeVideo   = "video"
	PostTypeEvent   = "event"
	PostTypeProduct = "product"
	PostTypeAudio   = "audio"
)

// Post visibility levels. Only public posts are feed candidates.
const (
	VisibilityPublic  = "Public"
	VisibilityFriends = "Friends"
	VisibilityOnlyMe  = "Only Me"
)

// Post represents a post in the feed.
type Post struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	User       User   `gorm:"foreignKey:UserID" json:"user"`
	Content    string `gorm:"type:text" json:"content"`
	ImageURL   string `json:"image_url,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
	PostType   string `gorm:"type:varchar(20);default:'text'" json:"type"`
	Visibility string `gorm:"type:varchar(20);default:'Public';index" json:"visibility"`
	Location   string `json:"location,omitempty"`
	Category   string `json:"category,omitempty"`
	Shares     int    `gorm:"not null;default:0" json:"shares"`
	Views      int    `gorm:"not null;default:0" json:"views"`
	// ReactionsCount is not persisted; computed at query time
	ReactionsCount int `gorm:"->;-:migration" json:"reactions_count"`
	// CommentsCount is not persisted; computed at query time (top-level comments only)
	CommentsCount int            `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// ToRanking returns the scoring view of p.
func (p *Post) ToRanking() ranking.Post {
	return ranking.Post{
		ID:        p.ID,
		AuthorID:  p.UserID,
		CreatedAt: p.CreatedAt,
		Shares:    p.Shares,
		Views:     p.Views,
		Reactions: p.ReactionsCount,
		Comments:  p.CommentsCount,
	}
}
