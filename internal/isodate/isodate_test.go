package isodate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayouts(t *testing.T) {
	want := time.Date(2020, time.October, 5, 10, 42, 33, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "no zone", input: "2020-10-05T10:42:33", want: want},
		{name: "utc designator", input: "2020-10-05T10:42:33Z", want: want},
		{name: "colon offset", input: "2020-10-05T12:42:33+02:00", want: want},
		{name: "compact offset", input: "2020-10-05T05:42:33-0500", want: want},
		{name: "millis", input: "2020-10-05T10:42:33.250", want: want.Add(250 * time.Millisecond)},
		{name: "micros with zone", input: "2020-10-05T10:42:33.000123Z", want: want.Add(123 * time.Microsecond)},
		{name: "surrounding space", input: "  2020-10-05T10:42:33Z ", want: want},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "Parse(%q) = %v, want %v", tc.input, got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseEmptyIsAbsent(t *testing.T) {
	got, err := Parse("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptional(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{"not-a-date", "2020-10-05", "2020-13-05T10:42:33", "10:42:33"} {
		_, err := Parse(input)
		require.Error(t, err, input)

		var perr *ParseError
		require.True(t, errors.As(err, &perr), "expected *ParseError for %q", input)
		assert.Equal(t, input, perr.Value)
		assert.Contains(t, err.Error(), input)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := time.Date(2021, time.March, 1, 23, 59, 1, 125_000_000, time.FixedZone("EST", -5*3600))

	formatted := Format(in)
	assert.Equal(t, "2021-03-02T04:59:01.125Z", formatted)

	out, err := Parse(formatted)
	require.NoError(t, err)
	assert.True(t, in.Equal(*out))
}

func TestFormatKeepsSubMillisecondPrecision(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "2020-10-05T10:42:33.000123Z", want: "2020-10-05T10:42:33.000123Z"},
		{input: "2020-10-05T10:42:33.123456789Z", want: "2020-10-05T10:42:33.123456789Z"},
		{input: "2020-10-05T10:42:33.5", want: "2020-10-05T10:42:33.500Z"},
	}
	for _, tc := range tests {
		parsed, err := Parse(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.want, Format(*parsed), tc.input)

		again, err := Parse(Format(*parsed))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(*again), tc.input)
	}
}

func TestFormatOptional(t *testing.T) {
	assert.Nil(t, FormatOptional(nil))

	in := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	got := FormatOptional(&in)
	require.NotNil(t, got)
	assert.Equal(t, "2021-03-01T00:00:00.000Z", *got)
}
