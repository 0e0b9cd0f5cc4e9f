package cnll

import (
	"log/slog"
	"math"
)

// Limits of the new crossing search.
const (
	newCrossingIterations = 20
	bisectionSteps        = 5
	profileTrigger        = 0.7
	runawayObjective      = 1e6
)

// newCrossing sweeps towards the bound without profiling, correcting the
// unprofiled objective with a quadratic term learned from previous
// iterations. It profiles once the objective has moved enough or a
// crossing is bracketed, then narrows the window around the crossing.
type newCrossing struct{}

func (newCrossing) Name() CrossingAlgorithm { return CrossingNew }

func (newCrossing) Search(s *search) float64 {
	var (
		cfg      = s.cfg
		level    = s.level
		rStart   = s.rStart
		rBound   = s.rBound
		rVal     = rStart
		quadCorr float64
		unbound  = !cfg.Bounded
		stepSize = cfg.StepSize
	)

	s.r.SetVal(rStart)

	if !s.improve() {
		s.logger.Error("minimization failed", slog.Float64("x", rStart))

		return math.NaN()
	}

	tol := s.minim.Tolerance()

	for iter := 0; iter < newCrossingIterations; iter++ {
		rVal = rStart
		s.r.SetVal(rVal)

		yStart, clean := s.evaluate()
		if !clean {
			s.logger.Error("objective failed at start of iteration",
				slog.Int("iter", iter),
				slog.Float64("x", rVal),
				slog.Float64("y", yStart),
			)

			return math.NaN()
		}

		rInc := stepSize * (rBound - rStart)
		if rInc == 0 {
			break
		}

		s.report("step", iter, rVal, yStart, rInc)

		hitBound := true

		for steps := 0; unbound || (rBound-rVal-rInc)*rInc >= 0; steps++ {
			if steps >= cfg.MaxSweepSteps {
				hitBound = false

				break
			}

			rVal += rInc
			s.r.SetVal(rVal)

			if s.r.Val() != rVal {
				s.logger.Error("cannot set parameter", slog.Float64("x", rVal))

				return math.NaN()
			}

			y, clean := s.evaluate()
			if !clean || math.Abs(y-level) > runawayObjective {
				// Step back and approach the bad region carefully.
				rVal -= rInc
				s.r.SetVal(rVal)

				hitBound = false
				stepSize *= 0.3

				break
			}

			yCorr := y - quadCorr*sq(rVal-rStart)

			if math.Abs(yCorr-yStart) > profileTrigger {
				hitBound = false

				break
			}

			if (level-yCorr)*(level-yStart) < 0 {
				r2 := rVal - rInc

				for j := 0; math.Abs(yCorr-level) > tol && j < bisectionSteps; j++ {
					rMid := 0.5 * (rVal + r2)
					s.r.SetVal(rMid)

					yCorr = s.nll.Evaluate() - quadCorr*sq(rMid-rStart)

					if (level-yCorr)*(level-yStart) < 0 {
						rVal = rMid
					} else {
						r2 = rMid
					}
				}

				s.r.SetVal(rVal)
				s.report("refine", iter, rVal, yCorr, rVal-r2)

				hitBound = false

				break
			}
		}

		yUnprof := s.nll.Evaluate()

		if !s.improve() {
			s.logger.Error("minimization failed", slog.Float64("x", rVal))

			if !cfg.NeverGiveUp {
				return math.NaN()
			}
		}

		yProf := s.nll.Evaluate()

		if math.Abs(yProf-level) < tol {
			w0, w1 := math.Abs(yProf-level), math.Abs(yStart-level)
			if w0+w1 == 0 {
				return rVal
			}

			return (w1*rVal + w0*rStart) / (w0 + w1)
		}

		if rVal != rStart {
			quadCorr = (yUnprof - yProf) / sq(rVal-rStart)
		}

		if (level-yStart)*(level-yProf) > 0 {
			// Still on the start side.
			rStart = rVal

			if hitBound {
				s.logger.Warn("closed range without finding crossing", slog.Float64("x", rVal))

				return rVal
			}
		} else {
			// Bracketed: the window bound is no longer needed.
			rBound = rStart
			rStart = rVal
			unbound = true
		}

		s.logger.Debug("search window", slog.Float64("start", rStart), slog.Float64("bound", rBound))
	}

	if !cfg.ReturnApproximate {
		s.logger.Error("search did not converge", slog.Float64("x", rVal))

		return math.NaN()
	}

	s.logger.Warn("search did not converge, returning approximate answer", slog.Float64("x", rVal))

	return rVal
}
