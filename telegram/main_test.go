package telegram

import (
	"context"
	"errors"
	"testing"

	"oratodev/coach"
)

func TestFallsThroughToCoaching(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"not in a simulation", coach.ErrInvalidState, true},
		{"busy", coach.ErrBusy, false},
		{"cancelled", context.Canceled, false},
		{"backend failure", errors.New("model down"), false},
	}

	for _, tc := range cases {
		if got := fallsThroughToCoaching(tc.err); got != tc.want {
			t.Errorf("%s: fallsThroughToCoaching(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}
