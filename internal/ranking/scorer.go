package ranking

import (
	"math"
	"slices"
	"time"
)

// Post is the scoring view of a feed post. A zero CreatedAt is treated as
// "now", giving the post an age of zero.
type Post struct {
	ID        uint
	AuthorID  uint
	CreatedAt time.Time
	Shares    int
	Views     int
	Reactions int
	Comments  int
}

// User is the scoring view of an account. A zero JoinedDate is treated as
// "now", so such accounts always count as newly joined.
type User struct {
	ID         uint
	Followers  []uint
	JoinedDate time.Time
	Location   string
}

// Breakdown exposes every factor that went into a score.
type Breakdown struct {
	AgeHours     float64 `json:"age_hours"`
	Engagement   float64 `json:"engagement"`
	Multiplier   float64 `json:"multiplier"`
	NewAccount   bool    `json:"new_account"`
	MicroCreator bool    `json:"micro_creator"`
	Monopoly     bool    `json:"monopoly"`
	Local        bool    `json:"local"`
	Related      bool    `json:"related"`
	Clout        float64 `json:"clout"`
	Relationship float64 `json:"relationship"`
	Decay        float64 `json:"decay"`
	Score        float64 `json:"score"`
}

// Scorer computes visibility scores with a fixed set of weights.
// A Scorer is immutable and safe for concurrent use.
type Scorer struct {
	w Weights
}

// NewScorer returns a Scorer using w, or the default weights when w is nil.
func NewScorer(w *Weights) *Scorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &Scorer{w: *w}
}

// Weights returns a copy of the weights the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Score returns the visibility score of post written by author, as seen by
// viewer at time now. viewer may be nil for anonymous ranking.
func (s *Scorer) Score(post Post, viewer *User, author User, now time.Time) float64 {
	return s.Explain(post, viewer, author, now).Score
}

// Explain is Score with every intermediate factor retained.
func (s *Scorer) Explain(post Post, viewer *User, author User, now time.Time) Breakdown {
	w := s.w
	var b Breakdown

	created := post.CreatedAt
	if created.IsZero() {
		created = now
	}
	b.AgeHours = float64(now.Sub(created)) / float64(time.Hour)

	b.Engagement = float64(post.Shares)*w.Engagement.Share +
		float64(post.Comments)*w.Engagement.Comment +
		float64(post.Reactions)*w.Engagement.Reaction +
		float64(post.Views)*w.Engagement.View

	b.Multiplier = 1.0

	joined := author.JoinedDate
	if joined.IsZero() {
		joined = now
	}
	if now.Sub(joined) < w.Growth.NewAccountWindow {
		b.NewAccount = true
		b.Multiplier *= w.Growth.NewAccountBoost
	}

	followers := len(author.Followers)
	switch {
	case followers < w.Growth.MicroCreatorMax:
		b.MicroCreator = true
		b.Multiplier *= w.Growth.MicroCreatorBoost
	case followers > w.Growth.MonopolyMin:
		b.Monopoly = true
		b.Multiplier *= w.Growth.MonopolyPenalty
	}

	if viewer != nil && viewer.Location != "" && author.Location != "" && viewer.Location == author.Location {
		b.Local = true
		b.Multiplier *= w.Growth.LocalBoost
	}

	b.Clout = math.Log10(float64(followers) + w.Growth.CloutFollowersOffset)

	// The author must appear among the viewer's followers, not the other way round.
	b.Relationship = 1.0
	if viewer != nil && slices.Contains(viewer.Followers, author.ID) {
		b.Related = true
		b.Relationship = w.Growth.RelationshipBoost
	}

	b.Decay = math.Pow(b.AgeHours+w.Decay.Offset, w.Decay.Exponent)

	b.Score = (b.Engagement * b.Multiplier * b.Relationship * b.Clout) / b.Decay
	return b
}

var defaultScorer = NewScorer(nil)

// CalculatePostScore scores post with the default weights.
func CalculatePostScore(post Post, viewer *User, author User, now time.Time) float64 {
	return defaultScorer.Score(post, viewer, author, now)
}
