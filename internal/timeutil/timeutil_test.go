package timeutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SupportedFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "RFC1123Z with GMT offset",
			in:   "Wed, 21 Oct 2015 07:28:00 +0000",
			want: time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC),
		},
		{
			name: "RFC1123 with GMT suffix",
			in:   "Wed, 04 Jun 2025 14:15:14 GMT",
			want: time.Date(2025, 6, 4, 14, 15, 14, 0, time.UTC),
		},
		{
			name: "ISO8601 with trailing Z",
			in:   "2025-06-04T14:15:14Z",
			want: time.Date(2025, 6, 4, 14, 15, 14, 0, time.UTC),
		},
		{
			name: "ISO8601 with offset normalizes to UTC",
			in:   "2025-06-04T23:15:14+09:00",
			want: time.Date(2025, 6, 4, 14, 15, 14, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), got, time.Second)
}

func TestParse_BadDate(t *testing.T) {
	_, err := Parse("not a date at all")
	assert.True(t, errors.Is(err, ErrBadDate))
}

func TestToNaiveUTC_StripsOffset(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	in := time.Date(2025, 6, 5, 0, 0, 0, 0, loc)
	got := ToNaiveUTC(in)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.June, got.Month())
	assert.Equal(t, 4, got.Day())
	assert.Equal(t, 15, got.Hour())
}
