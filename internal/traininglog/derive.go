package traininglog

import (
	"math"
	"time"
)

// Volume is the total work of an entry: weight x reps x sets.
func Volume(weight float64, reps, sets int) float64 {
	return weight * float64(reps) * float64(sets)
}

// Estimated1RM uses the Epley formula, rounded to one decimal. A single rep
// is its own max.
func Estimated1RM(weight float64, reps int) float64 {
	if reps == 1 {
		return weight
	}
	return math.Round(weight*(1+float64(reps)/30)*10) / 10
}

// deriveMetrics recomputes the derived fields from the current raw values.
func deriveMetrics(e *Entry) {
	e.Volume = Volume(e.Weight, e.Reps, e.Sets)
	e.Estimated1RM = Estimated1RM(e.Weight, e.Reps)
}

func validateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return NewValidationError("weight", "not a number")
	}
	if w < MinWeight || w > MaxWeight {
		return NewValidationError("weight", "must be between 0 and 500")
	}
	return nil
}

func validateReps(r int) error {
	if r < MinReps || r > MaxReps {
		return NewValidationError("reps", "must be between 1 and 100")
	}
	return nil
}

func validateSets(s int) error {
	if s < MinSets || s > MaxSets {
		return NewValidationError("sets", "must be between 1 and 20")
	}
	return nil
}

func (p CreateParams) validate() error {
	if p.UserID == "" {
		return NewValidationError("userId", "required")
	}
	if p.ExerciseID == "" {
		return NewValidationError("exerciseId", "required")
	}
	if p.Weight == nil {
		return NewValidationError("weight", "required")
	}
	if p.Reps == nil {
		return NewValidationError("reps", "required")
	}
	if p.Sets == nil {
		return NewValidationError("sets", "required")
	}
	if err := validateWeight(*p.Weight); err != nil {
		return err
	}
	if err := validateReps(*p.Reps); err != nil {
		return err
	}
	return validateSets(*p.Sets)
}

func (f EditFields) validate() error {
	if f.Weight != nil {
		if err := validateWeight(*f.Weight); err != nil {
			return err
		}
	}
	if f.Reps != nil {
		if err := validateReps(*f.Reps); err != nil {
			return err
		}
	}
	if f.Sets != nil {
		return validateSets(*f.Sets)
	}
	return nil
}

// Validate checks the stored domain constraints of an entry. Stores call it
// before writing.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return NewValidationError("id", "required")
	}
	if e.UserID == "" {
		return NewValidationError("userId", "required")
	}
	if e.ExerciseID == "" {
		return NewValidationError("exerciseId", "required")
	}
	if err := validateWeight(e.Weight); err != nil {
		return err
	}
	if err := validateReps(e.Reps); err != nil {
		return err
	}
	return validateSets(e.Sets)
}

// DayBounds returns the first and last instant of the day containing t, in
// t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
