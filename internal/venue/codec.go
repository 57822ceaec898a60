package venue

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"depthScope/internal/model"
)

// Codec translates between a venue's wire protocol and canonical events.
type Codec interface {
	Name() string
	Endpoint() string
	// SubscribeRequest builds the control message sent right after dialing.
	SubscribeRequest(symbols []string) (interface{}, error)
	// CheckAck reports whether msg acknowledges the subscription. A rejected
	// subscription is returned as an error.
	CheckAck(msg []byte) (bool, error)
	// Decode converts a data frame into snapshots. Control frames yield nil.
	// Errors matching exception.ErrDecode drop the frame; any other error
	// invalidates the connection.
	Decode(msg []byte) ([]model.OrderbookSnapshot, error)
}

// Preparer is implemented by codecs that need a bootstrap step before the
// first subscription.
type Preparer interface {
	Prepare(ctx context.Context, symbols []string) error
}

// New returns the codec for a venue name.
func New(name string, cfg CodecConfig) (Codec, error) {
	switch strings.ToLower(name) {
	case BinanceName:
		return NewBinance(cfg.BinanceURL, cfg.BinanceDepth), nil
	case OKXName:
		return NewOKX(cfg.OKXURL, cfg.OKXInstrumentsURL, cfg.HTTPClient), nil
	default:
		return nil, fmt.Errorf("unsupported venue: %s", name)
	}
}

func decodeError(venue string, format string, args ...interface{}) error {
	return &model.DecodeError{Venue: venue, Reason: fmt.Sprintf(format, args...)}
}

// levelsFromStrings parses [price, size, ...] string tuples, scaling sizes by
// multiplier when it is not one.
func levelsFromStrings(venue string, levels [][]string, multiplier decimal.Decimal) ([]model.Level, error) {
	out := make([]model.Level, 0, len(levels))
	for _, lv := range levels {
		if len(lv) < 2 {
			return nil, decodeError(venue, "short level %v", lv)
		}
		price, err := decimal.NewFromString(lv[0])
		if err != nil {
			return nil, decodeError(venue, "price %q: %v", lv[0], err)
		}
		qty, err := decimal.NewFromString(lv[1])
		if err != nil {
			return nil, decodeError(venue, "size %q: %v", lv[1], err)
		}
		if !multiplier.Equal(decimal.NewFromInt(1)) {
			qty = qty.Mul(multiplier)
		}
		out = append(out, model.Level{Price: price, Quantity: qty})
	}
	return out, nil
}

// splitSymbol splits a canonical BASE/QUOTE symbol.
func splitSymbol(symbol string) (string, string, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("invalid symbol %q, want BASE/QUOTE", symbol)
	}
	return base, quote, nil
}
