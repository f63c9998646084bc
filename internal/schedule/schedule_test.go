package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalsStrictlyIncreasingFromOne(t *testing.T) {
	for _, a := range Algorithms() {
		table, err := Intervals(a)
		require.NoError(t, err, a)
		require.NoError(t, table.Validate(), a)
		assert.Equal(t, 1, table[0], "%s must start at 1 day", a)
	}
}

func TestIntervalsCanonicalValues(t *testing.T) {
	fib, err := Intervals(Fibonacci)
	require.NoError(t, err)
	assert.Equal(t, Table{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233}, fib)

	exp, err := Intervals(Exponential)
	require.NoError(t, err)
	assert.Equal(t, Table{1, 3, 7, 14, 30, 60, 120, 240, 480}, exp)
}

func TestIntervalsReturnsCopy(t *testing.T) {
	fib, err := Intervals(Fibonacci)
	require.NoError(t, err)
	fib[0] = 999

	again, err := Intervals(Fibonacci)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0])
}

func TestIntervalsUnknown(t *testing.T) {
	_, err := Intervals("sm2")
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"fibonacci", Fibonacci, false},
		{"Exponential", Exponential, false},
		{"  FIBONACCI ", Fibonacci, false},
		{"leitner", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestOffsetClampsToLastEntry(t *testing.T) {
	exp, _ := Intervals(Exponential)
	assert.Equal(t, 1, exp.Offset(0))
	assert.Equal(t, 14, exp.Offset(3))
	assert.Equal(t, 480, exp.Offset(8))
	assert.Equal(t, 480, exp.Offset(50))
	assert.Equal(t, 1, exp.Offset(-3))
}

func TestOffsetIsPure(t *testing.T) {
	fib, _ := Intervals(Fibonacci)
	for n := 0; n < 20; n++ {
		assert.Equal(t, fib.Offset(n), fib.Offset(n), "review count %d", n)
	}
}

func TestNextFibonacciThirdEntry(t *testing.T) {
	fib, _ := Intervals(Fibonacci)
	next := Next(Fibonacci, fib, 2)
	assert.Equal(t, 3, next.DaysFromNow)
	assert.Equal(t, 2, next.IntervalIndex)
	assert.Equal(t, 3, next.TotalReviews)
	assert.Equal(t, 1+2+3, next.ScheduledDays)
	assert.Equal(t, Fibonacci, next.Algorithm)
}

func TestNextBeyondTable(t *testing.T) {
	exp, _ := Intervals(Exponential)
	next := Next(Exponential, exp, 100)
	assert.Equal(t, 480, next.DaysFromNow)
	assert.Equal(t, len(exp)-1, next.IntervalIndex)
	assert.Equal(t, 101, next.TotalReviews)
}

func TestValidateRejectsBadTables(t *testing.T) {
	bad := []Table{
		{},
		{0, 1, 2},
		{1, 3, 3},
		{1, 5, 2},
		{-1, 2},
	}
	for _, tbl := range bad {
		assert.Error(t, tbl.Validate(), "%v", tbl)
	}
}
