// Package ranking orders feed posts by their Dynamic Visibility Score (DVS).
//
// The score balances raw engagement against anti-monopoly and relationship
// signals:
//
//	score = engagement * multiplier * relationship * clout / decay
//
// where
//
//	engagement   = shares*10 + comments*5 + reactions*2 + views*0.1
//	multiplier   = new-account (1.5) * micro-creator (1.3) | monopoly (0.7) * local (1.4)
//	relationship = 2.5 when the author is among the viewer's followers, else 1.0
//	clout        = log10(followers + 10)
//	decay        = (ageHours + 2) ^ 1.8
//
// Scoring is pure: the reference time is always passed in, inputs are never
// mutated and nothing is logged. Every constant above lives in Weights and can
// be tuned at deploy time with a YAML calibration file:
//
//	weights, err := ranking.LoadCalibration("configs/ranking.yml")
//	if err != nil {
//		slog.Warn("using default ranking weights", "error", err)
//	}
//	scorer := ranking.NewScorer(weights)
//	ordered := scorer.Rank(posts, viewer, users, time.Now())
package ranking
