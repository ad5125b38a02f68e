package strategy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestThresholdsAreInclusive(t *testing.T) {
	assert.True(t, avgVolumePasses(ptr(1_500_000)))
	assert.False(t, avgVolumePasses(ptr(1_499_999.99)))
	assert.False(t, avgVolumePasses(nil))

	assert.True(t, ivRVPasses(ptr(1.25)))
	assert.False(t, ivRVPasses(ptr(1.2499)))
	assert.False(t, ivRVPasses(nil))

	assert.True(t, slopePasses(ptr(-0.00406)))
	assert.False(t, slopePasses(ptr(-0.00405)))
	assert.False(t, slopePasses(nil))
}

func TestRate(t *testing.T) {
	tests := []struct {
		avg, ratio, slope bool
		want              model.Rating
	}{
		{true, true, true, model.RatingGo},
		{true, false, true, model.RatingConsider},
		{false, true, true, model.RatingConsider},
		{false, false, true, model.RatingReject},
		{true, true, false, model.RatingReject},
		{true, false, false, model.RatingReject},
		{false, true, false, model.RatingReject},
		{false, false, false, model.RatingReject},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("avg=%v ratio=%v slope=%v", tt.avg, tt.ratio, tt.slope), func(t *testing.T) {
			assert.Equal(t, tt.want, Rate(tt.avg, tt.ratio, tt.slope))
		})
	}
}

func TestExpectedMove(t *testing.T) {
	tests := []struct {
		straddle float64
		price    float64
		want     string
	}{
		{4.2, 100, "4.2%"},
		{2, 100, "2.0%"},
		{1.23456, 100, "1.23%"},
		{5, 40, "12.5%"},
		{0.004, 100, "0.0%"},
		// ties are resolved on the binary float, not the decimal literal
		{1.005, 100, "1.0%"},
		{2.675, 100, "2.67%"},
	}
	for _, tt := range tests {
		got := ExpectedMove(ptr(tt.straddle), tt.price)
		require.NotNil(t, got)
		assert.Equal(t, tt.want, *got)
	}
	assert.Nil(t, ExpectedMove(nil, 100))
	assert.Nil(t, ExpectedMove(ptr(0), 100))
}

func TestParseExpectedMove(t *testing.T) {
	s := "12.5%"
	assert.Equal(t, 12.5, ParseExpectedMove(&s))
	padded := " 2.67% "
	assert.Equal(t, 2.67, ParseExpectedMove(&padded))
	bad := "n/a"
	assert.Equal(t, 0.0, ParseExpectedMove(&bad))
	assert.Equal(t, 0.0, ParseExpectedMove(nil))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindInsufficientExpirations, ErrorKind(fmt.Errorf("X: %w", calculator.ErrInsufficientExpirations)))
	assert.Equal(t, KindNoExpirations, ErrorKind(fmt.Errorf("X: %w", calculator.ErrNoExpirations)))
	assert.Equal(t, KindNoValidChains, ErrorKind(fmt.Errorf("X: %w", ErrNoValidChains)))
	assert.Equal(t, KindPriceUnavailable, ErrorKind(ErrPriceUnavailable))
	assert.Equal(t, KindNoViableChain, ErrorKind(calculator.ErrNoViableChain))
	assert.Equal(t, KindOther, ErrorKind(errors.New("timeout")))

	assert.True(t, IsExpirationShortfall(calculator.ErrNoExpirations))
	assert.False(t, IsExpirationShortfall(ErrNoValidChains))
}
