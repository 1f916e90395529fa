package traininglog

import (
	"time"
)

const (
	MinWeight = 0
	MaxWeight = 500
	MinReps   = 1
	MaxReps   = 100
	MinSets   = 1
	MaxSets   = 20
)

// Entry is a single logged set of an exercise.
type Entry struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	ExerciseID   string     `json:"exerciseId"`
	Weight       float64    `json:"weight"`
	Reps         int        `json:"reps"`
	Sets         int        `json:"sets"`
	Notes        string     `json:"notes"`
	Date         time.Time  `json:"date"`
	Volume       float64    `json:"volume"`
	Estimated1RM float64    `json:"estimated1RM"`
	IsPR         bool       `json:"isPR"`
	IsEdited     bool       `json:"isEdited"`
	EditedAt     *time.Time `json:"editedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Pair identifies the (user, exercise) scope of a personal record.
type Pair struct {
	UserID     string
	ExerciseID string
}

func (e *Entry) Pair() Pair {
	return Pair{UserID: e.UserID, ExerciseID: e.ExerciseID}
}

func (p Pair) String() string {
	return p.UserID + "/" + p.ExerciseID
}

// Outranks reports whether e should hold the PR flag over other. Heavier wins,
// equal weights go to the earlier entry, and the ID settles identical timestamps.
func (e *Entry) Outranks(other *Entry) bool {
	if e.Weight != other.Weight {
		return e.Weight > other.Weight
	}
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// CreateParams carries a log request. Pointer fields are required and
// validated for presence.
type CreateParams struct {
	UserID     string     `json:"userId"`
	ExerciseID string     `json:"exerciseId"`
	Weight     *float64   `json:"weight"`
	Reps       *int       `json:"reps"`
	Sets       *int       `json:"sets"`
	Notes      string     `json:"notes"`
	Date       *time.Time `json:"date"`
}

// EditFields is the subset of mutable fields an edit may supply.
type EditFields struct {
	Weight *float64 `json:"weight"`
	Reps   *int     `json:"reps"`
	Sets   *int     `json:"sets"`
	Notes  *string  `json:"notes"`
}

func (f EditFields) Empty() bool {
	return f.Weight == nil && f.Reps == nil && f.Sets == nil && f.Notes == nil
}

type CreateResult struct {
	Entry   *Entry `json:"entry"`
	IsNewPR bool   `json:"isNewPR"`
}

// OneRepMaxSummary is the best estimated 1RM for a pair, plus the entries it
// was ranked from.
type OneRepMaxSummary struct {
	Estimated1RM float64          `json:"estimated1RM"`
	BasedOn      *OneRepMaxBasis  `json:"basedOn"`
	History      []OneRepMaxBasis `json:"history"`
}

type OneRepMaxBasis struct {
	Estimated1RM float64   `json:"estimated1RM"`
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	Date         time.Time `json:"date"`
}

type Order int

const (
	OrderDateDesc Order = iota
	OrderDateAsc
	OrderEstimated1RMDesc
)

// ListParams filters entry listings. Empty strings and nil times mean "any".
type ListParams struct {
	UserID     string
	ExerciseID string
	From       *time.Time
	To         *time.Time
	PROnly     bool
	Order      Order
	// Limit <= 0 means no limit.
	Limit int
}
