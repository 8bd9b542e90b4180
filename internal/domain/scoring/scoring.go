// Package scoring turns a raw (accuracy, code length) measurement into an
// integer score. It is a pure function so the client and the server compute
// identical values for identical inputs.
package scoring

import "math"

const (
	// MaxBase is the score for a pixel-perfect match before bonuses.
	MaxBase = 600

	// LengthBonus is awarded when the solution fits the challenge's target
	// character budget at near-perfect accuracy.
	LengthBonus = 400

	// HintPenalty is subtracted once per hint used.
	HintPenalty = 50

	// lengthBonusAccuracy is the accuracy floor for the length bonus.
	lengthBonusAccuracy = 99.5
)

// Compute maps a measurement to a non-negative integer score.
//
// The score grows monotonically with accuracy, the length bonus applies only
// at charCount <= targetChars with accuracy above 99.5, and every hint used
// strictly lowers the achievable score.
func Compute(accuracy float64, charCount, hintsUsed, targetChars int) int {
	if accuracy < 0 {
		accuracy = 0
	}
	if accuracy > 100 {
		accuracy = 100
	}

	score := int(math.Round(accuracy / 100 * MaxBase))

	if targetChars > 0 && charCount <= targetChars && accuracy > lengthBonusAccuracy {
		score += LengthBonus
	}

	score -= hintsUsed * HintPenalty

	if score < 0 {
		score = 0
	}
	return score
}
