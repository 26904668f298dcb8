package domain

import "sort"

// LeaderboardEntry is one row of the broadcast scoreboard.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

const leaderboardSize = 5

// BuildLeaderboard ranks participants by score descending and truncates to
// the top 5. The input slice must be in join order: ties are broken by who
// joined first, which a stable sort preserves.
func BuildLeaderboard(participants []Participant) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, LeaderboardEntry{Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	return entries
}
