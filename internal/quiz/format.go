package quiz

import (
	"fmt"
	"math/big"
)

// rewardDivisor matches the quiz token's fixed 18-decimal scaling.
var rewardDivisor = new(big.Float).SetFloat64(1e18)

// Accuracy returns correct/total as a percentage rounded to the nearest
// integer, 0 when the player has not answered anything yet.
func (s PlayerStats) Accuracy() int {
	if s.TotalAnswered == 0 {
		return 0
	}
	return int(float64(s.CorrectAnswers)/float64(s.TotalAnswered)*100 + 0.5)
}

// FormatRewards converts a base-unit token amount (decimal string, uint256
// range) into a two-decimal display value, e.g. "12.50".
func FormatRewards(baseUnits string) string {
	amount, ok := new(big.Float).SetString(baseUnits)
	if !ok {
		return "0.00"
	}
	scaled := new(big.Float).Quo(amount, rewardDivisor)
	return scaled.Text('f', 2)
}

// FormatAddress shortens a hex address for display: 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
}

// PerformanceLevel bands accuracy the way the stats card labels players.
func PerformanceLevel(accuracy int) string {
	switch {
	case accuracy >= 90:
		return "Excellent"
	case accuracy >= 70:
		return "Good"
	case accuracy >= 50:
		return "Average"
	default:
		return "Keep Trying"
	}
}

// FormatClock renders seconds as m:ss for countdown display.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
