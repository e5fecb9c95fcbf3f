package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event types carried on the aggregate market channel.
const (
	EventNewMarket      = "new_market"
	EventBestBidAsk     = "best_bid_ask"
	EventLastTradePrice = "last_trade_price"
	EventMarketResolved = "market_resolved"
)

// MarketEvent is one message from the real-time market channel. The feed
// sends either a single object or an array of objects; numeric fields arrive
// as strings.
type MarketEvent struct {
	EventType string   `json:"event_type"`
	Market    string   `json:"market"`
	Question  string   `json:"question"`
	Slug      string   `json:"market_slug"`
	Icon      string   `json:"icon"`
	AssetsIDs []string `json:"assets_ids"`
	Outcomes  []string `json:"outcomes"`
	AssetID   string   `json:"asset_id"`
	BestBid   string   `json:"best_bid"`
	BestAsk   string   `json:"best_ask"`
	Price     string   `json:"price"`
	Size      string   `json:"size"`
	Timestamp string   `json:"timestamp"`
}

// BestBidPrice parses the best bid, returning 0 for missing/garbage values.
func (e *MarketEvent) BestBidPrice() float64 { return parsePrice(e.BestBid) }

// BestAskPrice parses the best ask, returning 0 for missing/garbage values.
func (e *MarketEvent) BestAskPrice() float64 { return parsePrice(e.BestAsk) }

// TradePrice parses the trade price field.
func (e *MarketEvent) TradePrice() float64 { return parsePrice(e.Price) }

// TradeSize parses the trade size field.
func (e *MarketEvent) TradeSize() float64 { return parsePrice(e.Size) }

func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// wsCommand is an outbound subscribe/unsubscribe message.
type wsCommand struct {
	Type    string    `json:"type"`
	Channel string    `json:"channel"`
	ID      int64     `json:"id"`
	Payload wsPayload `json:"payload"`
}

type wsPayload struct {
	Market   string   `json:"market,omitempty"`
	AssetIDs []string `json:"asset_ids,omitempty"`
}

// parseFrame decodes a raw market-channel frame into events. The feed sends
// either a JSON array or a single object; both shapes are accepted.
func parseFrame(raw []byte) ([]MarketEvent, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var events []MarketEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var ev MarketEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return []MarketEvent{ev}, nil
}

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"condition_id"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: "[\"Yes\",\"No\"]"
	ClobTokenIDs  string   `json:"clobTokenIds"`  // JSON-encoded token ID array
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded price array
	Image         string   `json:"image"`
}

// OutcomeLabels decodes the JSON-encoded outcome label array.
func (m *APIMarket) OutcomeLabels() []string {
	return decodeStringArray(m.Outcomes)
}

// TokenIDs decodes the JSON-encoded CLOB token ID array.
func (m *APIMarket) TokenIDs() []string {
	return decodeStringArray(m.ClobTokenIDs)
}

func decodeStringArray(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil
	}
	return out
}

// apiOrderResult is the CLOB order placement response.
type apiOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TakingPrice string `json:"takingAmount,omitempty"`
}
