package app

// BasePoints is awarded for every winning answer before the speed bonus.
const BasePoints = 10

// speedTiers are exclusive upper bounds in seconds; an answer at exactly 5s earns the <10s bonus.
var speedTiers = []struct {
	under float64
	bonus int
}{
	{under: 5, bonus: 10},
	{under: 10, bonus: 7},
	{under: 20, bonus: 5},
	{under: 35, bonus: 3},
}

const lateBonus = 1

// RewardFor returns the points for a winning answer given the seconds elapsed since the
// round started. Faster answers never earn less.
func RewardFor(responseTimeSeconds float64) int {
	if responseTimeSeconds < 0 {
		responseTimeSeconds = 0
	}
	for _, tier := range speedTiers {
		if responseTimeSeconds < tier.under {
			return BasePoints + tier.bonus
		}
	}
	return BasePoints + lateBonus
}
