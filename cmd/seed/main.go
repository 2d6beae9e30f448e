// Command main populates the database with demo users, follows and posts.
package main

import (
	"context"
	"flag"
	"log"

	"unera/internal/config"
	"unera/internal/database"
	"unera/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	followProb := flag.Float64("follow-probability", defaults.FollowProbability, "Chance that a user follows any other user")
	maxAge := flag.Int("max-age-days", defaults.MaxAgeDays, "Spread post creation times over this many days")
	randSeed := flag.Int64("seed", defaults.Seed, "Random seed, 0 for a random dataset")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	res, err := seed.Run(context.Background(), db, seed.Options{
		NumUsers:          *numUsers,
		NumPosts:          *numPosts,
		FollowProbability: *followProb,
		MaxAgeDays:        *maxAge,
		Seed:              *randSeed,
		ShouldClean:       *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d follows, %d posts, %d reactions, %d comments",
		res.Users, res.Follows, res.Posts, res.Reactions, res.Comments)
}
