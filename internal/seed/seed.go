package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"unera/internal/middleware"
	"unera/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// FollowProbability is the chance that any one user follows any other.
	FollowProbability float64
	MaxAgeDays        int
	Seed              int64
	ShouldClean       bool
	Now               time.Time
}

// DefaultOptions returns a small demo dataset.
func DefaultOptions() Options {
	return Options{
		NumUsers:          40,
		NumPosts:          200,
		FollowProbability: 0.15,
		MaxAgeDays:        14,
		Seed:              1,
	}
}

// Result counts what a seeding run inserted.
type Result struct {
	Users     int
	Follows   int
	Posts     int
	Reactions int
	Comments  int
}

// Run populates db according to opts inside a single transaction.
func Run(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("seed: NumUsers must be positive")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.ShouldClean {
			if err := Clean(tx); err != nil {
				return err
			}
		}

		f := NewFactory(tx, opts.Seed, opts.Now)
		rng := f.faker

		users := make([]*models.User, 0, opts.NumUsers)
		for i := 0; i < opts.NumUsers; i++ {
			u, err := f.CreateUser()
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		res.Users = len(users)

		for _, follower := range users {
			for _, followee := range users {
				if follower.ID == followee.ID || rng.Float64() >= opts.FollowProbability {
					continue
				}
				if err := f.CreateFollow(follower, followee); err != nil {
					return err
				}
				res.Follows++
			}
		}

		for i := 0; i < opts.NumPosts; i++ {
			author := users[rng.Number(0, len(users)-1)]
			post, err := f.CreatePost(author, opts.MaxAgeDays)
			if err != nil {
				return err
			}
			res.Posts++

			reactors := rng.Number(0, min(len(users), 15))
			for _, idx := range rng.Rand.Perm(len(users))[:reactors] {
				if err := f.CreateReaction(users[idx], post); err != nil {
					return err
				}
				res.Reactions++
			}

			for c := rng.Number(0, 4); c > 0; c-- {
				top, err := f.CreateComment(users[rng.Number(0, len(users)-1)], post, nil)
				if err != nil {
					return err
				}
				res.Comments++
				if rng.Float64() < 0.3 {
					if _, err := f.CreateComment(users[rng.Number(0, len(users)-1)], post, top); err != nil {
						return err
					}
					res.Comments++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", res.Users),
		slog.Int("follows", res.Follows),
		slog.Int("posts", res.Posts),
		slog.Int("reactions", res.Reactions),
		slog.Int("comments", res.Comments))
	return res, nil
}

// Clean removes every row the seeder can create.
func Clean(db *gorm.DB) error {
	for _, table := range []string{"comments", "reactions", "posts", "follows", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clean %s: %w", table, err)
		}
	}
	return nil
}
