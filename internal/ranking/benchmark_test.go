package ranking

import (
	"testing"
	"time"
)

func benchFeed(n int) ([]Post, []User) {
	users := make([]User, 0, n/10+1)
	for i := 0; i <= n/10; i++ {
		users = append(users, User{
			ID:         uint(i + 1),
			Followers:  followers(i * 37 % 7000),
			JoinedDate: refNow.Add(-time.Duration(i%90) * 24 * time.Hour),
			Location:   []string{"Lagos", "Accra", ""}[i%3],
		})
	}
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{
			ID:        uint(i + 1),
			AuthorID:  uint(i%len(users) + 1),
			CreatedAt: refNow.Add(-time.Duration(i%72) * time.Hour),
			Shares:    i % 13,
			Comments:  i % 7,
			Reactions: i % 29,
			Views:     i * 3 % 1000,
		}
	}
	return posts, users
}

func BenchmarkCalculatePostScore(b *testing.B) {
	post := Post{ID: 1, AuthorID: 2, CreatedAt: refNow.Add(-5 * time.Hour), Shares: 3, Comments: 4, Reactions: 20, Views: 400}
	author := User{ID: 2, Followers: followers(2000), Location: "Lagos"}
	viewer := &User{ID: 3, Followers: followers(300), Location: "Lagos"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CalculatePostScore(post, viewer, author, refNow)
	}
}

func BenchmarkRankFeed1000(b *testing.B) {
	posts, users := benchFeed(1000)
	viewer := &User{ID: 5, Followers: []uint{1, 2, 3}, Location: "Accra"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RankFeed(posts, viewer, users, refNow)
	}
}
