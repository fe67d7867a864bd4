package binance

import (
	"encoding/json"

	"basisarb/business/exchange/domain"
)

// combinedEvent wraps every message on a combined-streams connection.
type combinedEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// spotDepthEvent is the spot partial depth payload (<symbol>@depth20@100ms).
// The symbol is not in the payload; it comes from the stream name.
type spotDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// futuresDepthEvent is the USD-M partial depth payload, which uses the
// diff-event envelope even for fixed-depth streams.
type futuresDepthEvent struct {
	EventType     string     `json:"e"`
	Symbol        string     `json:"s"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// parseLevels converts [[price, qty], ...] rows, skipping malformed rows and
// zero-quantity tombstones.
func parseLevels(rows [][]string) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		price := parseDecimal(row[0])
		amount := parseDecimal(row[1])
		if price.IsZero() || amount.IsZero() {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Amount: amount})
	}
	return levels
}
