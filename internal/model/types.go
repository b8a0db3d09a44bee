package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Question is a single questionnaire item with its rating scale.
type Question struct {
	// ID is the item identifier from the Item# column (e.g., "Q1").
	ID string `json:"id"`
	// Statement is the text shown to the respondent.
	Statement string `json:"statement"`
	// Min is the lowest allowed rating.
	Min int `json:"min"`
	// Max is the highest allowed rating.
	Max int `json:"max"`
	// MinAnchor labels the low end of the scale (e.g., "Strongly Disagree").
	MinAnchor string `json:"min_anchor"`
	// MaxAnchor labels the high end of the scale (e.g., "Strongly Agree").
	MaxAnchor string `json:"max_anchor"`
}

// Midpoint returns floor((Min+Max)/2), the default value of the rating control.
func (q Question) Midpoint() int {
	sum := q.Min + q.Max
	if sum < 0 && sum%2 != 0 {
		return sum/2 - 1
	}
	return sum / 2
}

// Contains reports whether v lies within [Min, Max].
func (q Question) Contains(v int) bool {
	return v >= q.Min && v <= q.Max
}

// Clamp returns v limited to [Min, Max].
func (q Question) Clamp(v int) int {
	if v < q.Min {
		return q.Min
	}
	if v > q.Max {
		return q.Max
	}
	return v
}

// RatingSet maps question IDs to the chosen rating.
type RatingSet map[string]int

// Clone returns an independent copy of the set.
func (r RatingSet) Clone() RatingSet {
	out := make(RatingSet, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the question IDs in sorted order.
func (r RatingSet) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode serializes the set to the JSON text stored with a submission.
func (r RatingSet) Encode() (string, error) {
	if r == nil {
		r = RatingSet{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode ratings: %w", err)
	}
	return string(data), nil
}

// DecodeRatings parses a stored ratings blob. An empty blob yields an empty set.
func DecodeRatings(blob string) (RatingSet, error) {
	if blob == "" {
		return RatingSet{}, nil
	}
	var r RatingSet
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	if r == nil {
		r = RatingSet{}
	}
	return r, nil
}

// Submission is one persisted survey response.
type Submission struct {
	ID int64 `json:"id"`
	// CurrentDate is the submission timestamp as text ("2006-01-02 15:04").
	CurrentDate string `json:"current_date"`
	// Ratings is the RatingSet serialized as JSON text.
	Ratings string `json:"ratings"`
	// Assessment is the narrative returned by the LLM.
	Assessment string `json:"personality_assessment"`
}

// TimestampLayout is the format of Submission.CurrentDate.
const TimestampLayout = "2006-01-02 15:04"

// FormatTimestamp renders t in the submission timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Narrative is the personality writeup produced for one rating set.
type Narrative struct {
	// Text is the free-text writeup, or the fallback message when the call failed.
	Text string `json:"text"`
	// Fallback is true when Text is the static failure message.
	Fallback bool `json:"fallback"`
	// Cached is true when Text was served from the assessment cache.
	Cached bool `json:"cached,omitempty"`
	// Model is the LLM model that produced the text.
	Model string `json:"model,omitempty"`
	// Provider is the LLM provider used (e.g., "openai", "anthropic").
	Provider string `json:"provider,omitempty"`
	// Usage tracks token consumption for the call.
	Usage TokenUsage `json:"usage,omitempty"`
	// DurationMs is the wall-clock time of the call in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// TokenUsage tracks LLM token consumption for a single call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
