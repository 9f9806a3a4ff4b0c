package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

func TestInferYear(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		text     string
		fallback *int
		want     *int
	}{
		{
			name: "first in-range token wins",
			text: "The Constitution was adopted in 1950, Article 370 was later revised in 2019.",
			want: question.IntPtr(1950),
		},
		{
			name: "out of range tokens skipped",
			text: "Roll 1234 serial 9999 exam held 2021",
			want: question.IntPtr(2021),
		},
		{
			name: "future year skipped",
			text: "Syllabus 2025 revised 2023",
			want: question.IntPtr(2023),
		},
		{
			name: "longer digit runs ignored",
			text: "Ref 201920 code 12019",
			want: nil,
		},
		{
			name:     "fallback used",
			text:     "no years here",
			fallback: question.IntPtr(2018),
			want:     question.IntPtr(2018),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, InferYear(tc.text, tc.fallback, now))
		})
	}
}

func TestInferYearCopiesFallback(t *testing.T) {
	t.Parallel()

	fallback := question.IntPtr(2015)
	got := InferYear("", fallback, time.Now())
	require.NotNil(t, got)
	*got = 1
	require.Equal(t, 2015, *fallback)
}

func TestFirstYearBetween(t *testing.T) {
	t.Parallel()

	y, ok := FirstYearBetween("Asked in 1975 and again in 1998", 1990, 2024)
	require.True(t, ok)
	require.Equal(t, 1998, y)

	_, ok = FirstYearBetween("Asked in 1975", 1990, 2024)
	require.False(t, ok)
}
