package strategy

import (
	"errors"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/collector"
)

var (
	ErrNoValidChains    = collector.ErrNoValidChains
	ErrPriceUnavailable = collector.ErrPriceUnavailable
)

// Error categories used in reports and persisted failures.
const (
	KindNoExpirations           = "no_expirations"
	KindInsufficientExpirations = "insufficient_expirations"
	KindNoValidChains           = "no_valid_chains"
	KindPriceUnavailable        = "price_unavailable"
	KindNoViableChain           = "no_viable_chain"
	KindInsufficientData        = "insufficient_data"
	KindOther                   = "error"
)

// ErrorKind classifies a screening failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, calculator.ErrInsufficientExpirations):
		return KindInsufficientExpirations
	case errors.Is(err, calculator.ErrNoExpirations):
		return KindNoExpirations
	case errors.Is(err, ErrNoValidChains):
		return KindNoValidChains
	case errors.Is(err, ErrPriceUnavailable):
		return KindPriceUnavailable
	case errors.Is(err, calculator.ErrNoViableChain):
		return KindNoViableChain
	case errors.Is(err, calculator.ErrInsufficientData):
		return KindInsufficientData
	default:
		return KindOther
	}
}

// IsExpirationShortfall reports whether err means the symbol simply lacks listed expirations,
// which daily reports group separately from other failures.
func IsExpirationShortfall(err error) bool {
	kind := ErrorKind(err)
	return kind == KindNoExpirations || kind == KindInsufficientExpirations
}
