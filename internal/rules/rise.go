package rules

// Rule names, also the prefix of their alert identities.
const (
	SuddenRiseName   = "sudden_rise"
	ContinueRiseName = "continue_rise"
)

// SuddenRiseParams tunes the sudden-rise rule.
type SuddenRiseParams struct {
	// Ratio over the mean that counts as a rise.
	Ratio float64
	// NoiseFloor is the reading at or below which a sample is ignored.
	NoiseFloor float64
	// Recent is how many of the latest readings are inspected.
	Recent int
	// MeanSpan is how many of the latest readings form the baseline mean.
	MeanSpan int
}

// DefaultSuddenRise inspects the last 10 seconds against the mean of the last minute at 1 Hz.
var DefaultSuddenRise = SuddenRiseParams{Ratio: 1.3, NoiseFloor: 3, Recent: 10, MeanSpan: 60}

// Default warm-ups: sudden-rise needs a minute of history, continue-rise a few seconds.
const (
	DefaultSuddenRiseWarmUp   = 60
	DefaultContinueRiseWarmUp = 5
	DefaultContinueRiseRun    = 4
)

// SuddenRise returns true unless one of the recent readings sits above the
// noise floor while staying under Ratio times the baseline mean. Every recent
// reading must therefore be either a rise or noise for the rule to hold.
func SuddenRise(p SuddenRiseParams) Func {
	return func(readings []float64) bool {
		if p.Recent <= 0 || len(readings) < p.Recent {
			return false
		}
		span := p.MeanSpan
		if span <= 0 || span > len(readings) {
			span = len(readings)
		}
		limit := mean(readings[len(readings)-span:]) * p.Ratio

		for _, r := range readings[len(readings)-p.Recent:] {
			if r < limit && r > p.NoiseFloor {
				return false
			}
		}
		return true
	}
}

// ContinuousRise returns true when the last run readings are strictly increasing.
func ContinuousRise(run int) Func {
	return func(readings []float64) bool {
		if run < 2 || len(readings) < run {
			return false
		}
		tail := readings[len(readings)-run:]
		for i := 1; i < len(tail); i++ {
			if tail[i]-tail[i-1] <= 0 {
				return false
			}
		}
		return true
	}
}

// NewSuddenRise builds the sudden-rise rule.
func NewSuddenRise(p SuddenRiseParams, warmUp int) Rule {
	return Rule{Name: SuddenRiseName, WarmUp: warmUp, Eval: SuddenRise(p)}
}

// NewContinueRise builds the continuous-rise rule.
func NewContinueRise(run, warmUp int) Rule {
	return Rule{Name: ContinueRiseName, WarmUp: warmUp, Eval: ContinuousRise(run)}
}

// Defaults returns the reference rule set in evaluation order.
func Defaults() []Rule {
	return []Rule{
		NewSuddenRise(DefaultSuddenRise, DefaultSuddenRiseWarmUp),
		NewContinueRise(DefaultContinueRiseRun, DefaultContinueRiseWarmUp),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
