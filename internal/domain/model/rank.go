package model

// RankTitleDev is assigned to admin users unconditionally.
const RankTitleDev = "dev"

type rankThreshold struct {
	Min   int
	Title string
}

// Evaluated top-down; thresholds are inclusive lower bounds.
var rankThresholds = []rankThreshold{
	{15000, "1grid"},
	{10000, "1flex"},
	{7500, "2flex"},
	{5000, "3flex"},
	{3500, "4flex"},
	{2000, "5flex"},
	{1000, "6flex"},
	{500, "7flex"},
	{0, "8flex"},
}

// RankTitleForScore maps a lifetime best-score sum to its rank title.
func RankTitleForScore(totalScore int) string {
	for _, t := range rankThresholds {
		if totalScore >= t.Min {
			return t.Title
		}
	}
	return rankThresholds[len(rankThresholds)-1].Title
}

// RankTitleForUser applies the admin override on top of the score thresholds.
func RankTitleForUser(role string, totalScore int) string {
	if role == RoleAdmin {
		return RankTitleDev
	}
	return RankTitleForScore(totalScore)
}
