package ranking

import (
	"sort"
	"time"
)

// Scored pairs a post with the sort key it was ranked by.
type Scored struct {
	Post Post
	// Score is 0 when the author could not be resolved.
	Score float64
	// Resolved reports whether the post's author was found.
	Resolved bool
}

// RankScored scores every post against users and returns them ordered by
// descending score. Posts with equal scores keep their input order. A post
// whose author is missing from users scores 0 without being scored.
func (s *Scorer) RankScored(posts []Post, viewer *User, users []User, now time.Time) []Scored {
	authors := make(map[uint]User, len(users))
	for _, u := range users {
		authors[u.ID] = u
	}

	results := make([]Scored, len(posts))
	for i, p := range posts {
		results[i] = Scored{Post: p}
		author, ok := authors[p.AuthorID]
		if !ok {
			continue
		}
		results[i].Resolved = true
		results[i].Score = s.Score(p, viewer, author, now)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Rank returns posts reordered by descending visibility score. The result is
// a permutation of posts; the input slice is left untouched.
func (s *Scorer) Rank(posts []Post, viewer *User, users []User, now time.Time) []Post {
	scored := s.RankScored(posts, viewer, users, now)
	out := make([]Post, len(scored))
	for i, sc := range scored {
		out[i] = sc.Post
	}
	return out
}

// RankFeed ranks posts with the default weights.
func RankFeed(posts []Post, viewer *User, users []User, now time.Time) []Post {
	return defaultScorer.Rank(posts, viewer, users, now)
}
