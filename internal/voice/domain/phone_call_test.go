package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallDuration(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{name: "whole seconds", start: base, end: base.Add(42 * time.Second), want: 42},
		{name: "fraction rounds up", start: base, end: base.Add(10*time.Second + 200*time.Millisecond), want: 11},
		{name: "end equals start", start: base, end: base, want: 0},
		{name: "end before start clamps to zero", start: base, end: base.Add(-5 * time.Second), want: 0},
		{name: "sub-second call", start: base, end: base.Add(300 * time.Millisecond), want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CallDuration(tc.start, tc.end))
		})
	}
}
