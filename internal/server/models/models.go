// Package models holds server-side request types. GameInput is the only
// shape a client can use to write a game, and it has no owner or id field.
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	sm "gamevault/internal/shared/models"
)

type (
	Account       = sm.Account
	Game          = sm.Game
	GameList      = sm.GameList
	ListMeta      = sm.ListMeta
	TokenResponse = sm.TokenResponse
)

// GameInput is the whitelist of client-writable game fields. A nil field
// was not supplied.
type GameInput struct {
	Title       *string `json:"title"`
	Platform    *string `json:"platform"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	HoursPlayed *Hours  `json:"hoursPlayed"`
	Favorite    *Flag   `json:"favorite"`
}

// Patch converts the input into a storage patch. The title, when present,
// is trimmed.
func (in GameInput) Patch() GamePatch {
	p := GamePatch{
		Platform:    in.Platform,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		p.Title = &t
	}
	if in.HoursPlayed != nil {
		h := float64(*in.HoursPlayed)
		p.HoursPlayed = &h
	}
	if in.Favorite != nil {
		f := bool(*in.Favorite)
		p.Favorite = &f
	}
	return p
}

// GamePatch is a partial update of a stored game.
type GamePatch struct {
	Title       *string
	Platform    *string
	Description *string
	Status      *string
	HoursPlayed *float64
	Favorite    *bool
}

func (p GamePatch) Empty() bool {
	return p.Title == nil && p.Platform == nil && p.Description == nil &&
		p.Status == nil && p.HoursPlayed == nil && p.Favorite == nil
}

// FilterAll disables a platform or status filter.
const FilterAll = "all"

const (
	DefaultPage  = 1
	DefaultLimit = 8
)

// GameQuery selects a page of an owner's games.
type GameQuery struct {
	Platform string
	Status   string
	Q        string
	Page     int
	Limit    int
}

// Normalize applies defaults and drops sentinel filters. maxLimit <= 0
// leaves the limit uncapped.
func (q GameQuery) Normalize(maxLimit int) GameQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	// Keep (Page-1)*Limit within int so Offset cannot wrap negative.
	if q.Page > math.MaxInt/q.Limit {
		q.Page = math.MaxInt / q.Limit
	}
	if q.Platform == FilterAll {
		q.Platform = ""
	}
	if q.Status == FilterAll {
		q.Status = ""
	}
	q.Q = strings.TrimSpace(q.Q)
	return q
}

func (q GameQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Hours is a numeric field that accepts numbers, numeric strings and
// booleans. Anything that is not a finite number becomes 0.
type Hours float64

func (h *Hours) UnmarshalJSON(b []byte) error {
	*h = Hours(coerceNumber(b))
	return nil
}

func coerceNumber(b []byte) float64 {
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return 0
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Flag is a boolean field that accepts booleans, numbers and strings.
// Strings that strconv.ParseBool understands use that meaning, other
// non-empty strings are true.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag(coerceBool(b))
	return nil
}

func coerceBool(b []byte) bool {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		s := strings.TrimSpace(x)
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
		return s != ""
	case nil:
		return false
	default:
		return true
	}
}
