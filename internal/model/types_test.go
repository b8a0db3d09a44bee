package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestQuestion_Midpoint(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		want     int
	}{
		{name: "zero to ten", min: 0, max: 10, want: 5},
		{name: "zero to five rounds down", min: 0, max: 5, want: 2},
		{name: "one to seven", min: 1, max: 7, want: 4},
		{name: "one to four rounds down", min: 1, max: 4, want: 2},
		{name: "single value scale", min: 3, max: 3, want: 3},
		{name: "negative range floors", min: -3, max: 0, want: -2},
		{name: "symmetric negative range", min: -5, max: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{Min: tt.min, Max: tt.max}
			if got := q.Midpoint(); got != tt.want {
				t.Errorf("Midpoint() for [%d,%d] = %d, want %d", tt.min, tt.max, got, tt.want)
			}
			if !q.Contains(q.Midpoint()) {
				t.Errorf("midpoint %d outside [%d,%d]", q.Midpoint(), tt.min, tt.max)
			}
		})
	}
}

func TestQuestion_Clamp(t *testing.T) {
	q := Question{Min: 1, Max: 5}
	for in, want := range map[int]int{-10: 1, 1: 1, 3: 3, 5: 5, 99: 5} {
		if got := q.Clamp(in); got != want {
			t.Errorf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRatingSet_RoundTrip(t *testing.T) {
	sets := []RatingSet{
		{},
		{"Q1": 7, "Q2": 2},
		{"Item 3": 0, "Q-4": -2, "Q5": 10},
	}
	for _, in := range sets {
		blob, err := in.Encode()
		if err != nil {
			t.Fatalf("Encode(%v): %v", in, err)
		}
		out, err := DecodeRatings(blob)
		if err != nil {
			t.Fatalf("DecodeRatings(%q): %v", blob, err)
		}
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestRatingSet_EncodeNil(t *testing.T) {
	var r RatingSet
	blob, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if blob != "{}" {
		t.Errorf("Encode(nil) = %q, want {}", blob)
	}
}

func TestDecodeRatings_EmptyAndMalformed(t *testing.T) {
	got, err := DecodeRatings("")
	if err != nil {
		t.Fatalf("empty blob: unexpected error %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty blob: got %v, want empty set", got)
	}

	got, err = DecodeRatings("null")
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("null blob: got %v, %v; want empty set", got, err)
	}

	if _, err := DecodeRatings(`{"Q1": 7`); err == nil {
		t.Error("expected error for truncated blob")
	} else if !strings.Contains(err.Error(), "decode ratings") {
		t.Errorf("error should be wrapped, got %v", err)
	}
}

func TestRatingSet_CloneIsIndependent(t *testing.T) {
	orig := RatingSet{"Q1": 1}
	c := orig.Clone()
	c["Q1"] = 9
	if orig["Q1"] != 1 {
		t.Errorf("mutating clone changed original: %v", orig)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 7, 59, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2026-03-04 09:07" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
