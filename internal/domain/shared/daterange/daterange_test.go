package daterange

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIsStrict(t *testing.T) {
	d, err := Parse("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, MustDate(2024, time.February, 29), d)

	for _, raw := range []string{"2023-02-29", "2024-2-01", "2024-13-01", "20240101", "2024-01-01T00:00:00Z", ""} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidDate, raw)
	}
}

func TestNewDateRejectsNormalizedValues(t *testing.T) {
	_, err := NewDate(2024, time.April, 31)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestTodayUsesLocation(t *testing.T) {
	now := time.Date(2024, time.March, 10, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, MustParse("2024-03-10"), Today(now, nil))
	assert.Equal(t, MustParse("2024-03-11"), Today(now, tokyo))
}

func TestCompareAndArithmetic(t *testing.T) {
	a := MustParse("2024-12-31")
	b := a.AddDays(1)
	assert.Equal(t, MustParse("2025-01-01"), b)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, 0, a.Compare(MustParse("2024-12-31")))
}

func TestRangeHalfOpen(t *testing.T) {
	first := DateRange{CheckIn: MustParse("2024-03-10"), CheckOut: MustParse("2024-03-12")}
	touching := DateRange{CheckIn: MustParse("2024-03-12"), CheckOut: MustParse("2024-03-14")}
	crossing := DateRange{CheckIn: MustParse("2024-03-11"), CheckOut: MustParse("2024-03-13")}

	assert.False(t, first.Overlaps(touching))
	assert.True(t, first.Adjacent(touching))
	assert.True(t, first.Overlaps(crossing))
	assert.True(t, first.ContainsDate(MustParse("2024-03-11")))
	assert.False(t, first.ContainsDate(MustParse("2024-03-12")))
	assert.Equal(t, 2, first.Nights())
	assert.Equal(t, []Date{MustParse("2024-03-10"), MustParse("2024-03-11")}, first.Days())
}

func TestNewRangeValidates(t *testing.T) {
	_, err := New(MustParse("2024-03-12"), MustParse("2024-03-12"))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(MustParse("2024-03-12"), Date{})
	assert.ErrorIs(t, err, ErrInvalidRange)

	swapped := DateRange{CheckIn: MustParse("2024-03-14"), CheckOut: MustParse("2024-03-12")}.Normalized()
	assert.Equal(t, MustParse("2024-03-12"), swapped.CheckIn)
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		In  Date `json:"in"`
		Out Date `json:"out"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"in":"2024-03-10","out":""}`), &payload))
	assert.Equal(t, MustParse("2024-03-10"), payload.In)
	assert.True(t, payload.Out.IsZero())

	raw, err := json.Marshal(payload.In)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-10"`, string(raw))

	assert.Error(t, json.Unmarshal([]byte(`{"in":"10/03/2024"}`), &payload))
}
