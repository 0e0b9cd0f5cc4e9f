package cnll

import (
	"log/slog"
	"math"
)

// legacyCrossing steps towards the bound, minimising at every step. A step
// that overshoots the level or moves away from it is undone, the nuisance
// parameters are restored from the last accepted point and the step is
// shortened. The search fails when the step falls below the tolerance
// without reaching the level.
type legacyCrossing struct{}

func (legacyCrossing) Name() CrossingAlgorithm { return CrossingLegacy }

func (legacyCrossing) Search(s *search) float64 {
	var (
		cfg    = s.cfg
		level  = s.level
		rStart = s.rStart
		rBound = s.rBound
		rInc   = cfg.StepSize * (rBound - rStart)
	)

	s.r.SetVal(rStart)

	ok := s.minimize()
	checkpoint := s.minim.Save()

	if !ok && !cfg.KeepFailures {
		s.logger.Error("minimization failed", slog.Float64("x", rStart))

		return math.NaN()
	}

	here := s.nll.Evaluate()
	if math.IsNaN(here) {
		s.logger.Error("objective is NaN at start", slog.Float64("x", rStart))

		return math.NaN()
	}

	nfail, xHere := 0, rStart

	for step, open := 0, true; open; open = math.Abs(rInc) > cfg.Tolerance*cfg.StepSize*math.Max(1, rBound-rStart) {
		step++

		rStart += rInc
		if rInc*(rStart-rBound) > 0 {
			rStart -= rInc
			rInc = 0.5 * (rBound - rStart)
		}

		s.r.SetVal(rStart)

		if _, clean := s.evaluate(); clean {
			ok = s.minimize()
		} else {
			ok = false
		}

		if !ok && !cfg.KeepFailures {
			nfail++
			if nfail >= cfg.MaxFailedSteps {
				s.logger.Error("maximum failed steps reached",
					slog.Int("maxFailedSteps", cfg.MaxFailedSteps),
					slog.Float64("x", rStart),
				)

				return math.NaN()
			}

			checkpoint.FloatParsFinal.Restore()

			rStart -= rInc
			rInc *= 0.5

			continue
		}

		nfail = 0

		there, xThere := here, xHere
		here, xHere = s.nll.Evaluate(), rStart

		s.report("step", step, rStart, here, rInc)

		switch {
		case math.Abs(here-level) < 4*cfg.Tolerance:
			x := interpolate(xThere, there, xHere, here, level)
			s.r.SetVal(NewInterval(xThere, xHere).Clamp(x))
			s.report("refine", step, s.r.Val(), level, rInc)

			return s.r.Val()
		case here > level:
			// Overshot: undo the step and shorten it.
			rStart -= rInc

			if cfg.DynamicStep {
				rInc *= overshootFactor(here, there, level)
			} else {
				rInc *= 0.3
			}

			checkpoint.FloatParsFinal.Restore()
		case (here-there)*(level-there) < 0 && math.Abs(here-there) > 0.1:
			// Moved away from the level by more than roundoff.
			checkpoint.FloatParsFinal.Restore()

			rStart -= rInc
			rInc *= 0.5
		default:
			if cfg.DynamicStep {
				rInc *= advanceFactor(here, there, level)
			}

			checkpoint = s.minim.Save()
		}
	}

	if math.Abs(here-level) >= 4*cfg.Tolerance {
		s.logger.Error("closed range without finding crossing",
			slog.Float64("x", rStart),
			slog.Float64("y", here-level),
		)

		return math.NaN()
	}

	return s.r.Val()
}

// interpolate returns the x at which the line through (x0, y0) and (x1, y1)
// reaches level.
func interpolate(x0, y0, x1, y1, level float64) float64 {
	if y1 == y0 {
		return x1
	}

	return x0 + (level-y0)*(x1-x0)/(y1-y0)
}

// overshootFactor shortens a step that went past the level: carefully when
// the previous point was far from it, aiming straight for it otherwise.
func overshootFactor(here, there, level float64) float64 {
	ratio := (level - there) / (here - there)

	if math.Abs(there-level) > 0.05 {
		return math.Max(0.2, math.Min(0.7, 0.75*ratio))
	}

	return math.Max(0.05, math.Min(0.95, 0.95*ratio))
}

// advanceFactor resizes an accepted step from the last two values.
func advanceFactor(here, there, level float64) float64 {
	ratio := (level - there) / (here - there)

	if math.Abs(here-level) > 0.05 {
		if (here-there)*(level-there) > 0 {
			return math.Max(0.2, math.Min(2.0, 0.75*ratio))
		}

		return 1
	}

	return math.Max(0.05, math.Min(4.0, 0.95*ratio))
}
