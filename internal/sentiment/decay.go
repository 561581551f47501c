package sentiment

import (
	"math"
	"time"
)

// EffectiveWeight applies exponential time decay to a source's base weight.
// The weight halves every halfLife, never dropping below 10% of base while
// the data is younger than three half-lives; older data contributes nothing.
func EffectiveWeight(base float64, age time.Duration, halfLife time.Duration) float64 {
	if base <= 0 || halfLife <= 0 {
		return 0
	}
	if age <= 0 {
		return base
	}
	if age >= 3*halfLife {
		return 0
	}
	decayed := base * math.Exp2(-age.Hours()/halfLife.Hours())
	if floor := base * 0.1; decayed < floor {
		return floor
	}
	return decayed
}
