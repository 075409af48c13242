package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate_Timestamp(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 45, 12, 0, IndiaTZ)

	d, err := NormalizeDate(ts)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 3, 15), d)

	// Pointer form, as scanned from nullable timestamp columns.
	d, err = NormalizeDate(&ts)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 3, 15), d)
}

func TestNormalizeDate_StringForms(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want time.Time
	}{
		{"2024-01-05", Date(2024, 1, 5)},
		{"2024-01-05T09:30:00Z", Date(2024, 1, 5)},
		{"2024-01-05T09:30:00+05:30", Date(2024, 1, 5)},
		{"2024-01-05 09:30", Date(2024, 1, 5)},
		{"2023-12-31T23:59:59Z", Date(2023, 12, 31)},
	} {
		d, err := NormalizeDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, d, tc.in)
	}
}

func TestNormalizeDate_Failures(t *testing.T) {
	for _, in := range []any{
		"not-a-date",
		"05/01/2024",
		"",
		nil,
		42,
		(*time.Time)(nil),
	} {
		_, err := NormalizeDate(in)
		require.Error(t, err, "%v", in)
		assert.True(t, IsDateParseError(err), "%v should be a DateParseError", in)

		var dpe *DateParseError
		require.ErrorAs(t, err, &dpe)
		assert.Equal(t, in, dpe.Value, "original value must travel with the error")
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 6, 1, 18, 30, 0, 0, IndiaTZ)
	assert.Equal(t, Date(2024, 6, 1), DateOnly(in))
	assert.Equal(t, time.UTC, DateOnly(in).Location())
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-02-29", FormatDate(Date(2024, 2, 29)))
}
