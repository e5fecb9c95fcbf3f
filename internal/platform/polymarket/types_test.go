package polymarket

import (
	"reflect"
	"testing"
)

func TestParseFrame(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		raw := []byte(`[
			{"event_type":"best_bid_ask","market":"cond-1","asset_id":"tok-a","best_bid":"0.41","best_ask":"0.43"},
			{"event_type":"last_trade_price","asset_id":"tok-a","price":"0.42","size":"150.5"}
		]`)
		events, err := parseFrame(raw)
		if err != nil {
			t.Fatalf("parseFrame: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("events = %d, want 2", len(events))
		}
		if events[0].EventType != EventBestBidAsk || events[0].BestAskPrice() != 0.43 {
			t.Errorf("event 0 = %+v", events[0])
		}
		if events[1].TradePrice() != 0.42 || events[1].TradeSize() != 150.5 {
			t.Errorf("event 1 = %+v", events[1])
		}
	})

	t.Run("single object", func(t *testing.T) {
		raw := []byte(`{"event_type":"new_market","market":"cond-1","question":"Q?","assets_ids":["a","b"],"outcomes":["Yes","No"]}`)
		events, err := parseFrame(raw)
		if err != nil {
			t.Fatalf("parseFrame: %v", err)
		}
		if len(events) != 1 || events[0].EventType != EventNewMarket {
			t.Fatalf("events = %+v", events)
		}
		if !reflect.DeepEqual(events[0].AssetsIDs, []string{"a", "b"}) {
			t.Errorf("assets = %v", events[0].AssetsIDs)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := parseFrame([]byte(`{"event_type":`)); err == nil {
			t.Error("truncated object accepted")
		}
		if _, err := parseFrame([]byte(`[{"event_type":"x"`)); err == nil {
			t.Error("truncated array accepted")
		}
	})
}

func TestMarketEventPriceParsing(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"0.42", 0.42},
		{" 0.42 ", 0.42},
		{"", 0},
		{"garbage", 0},
		{"1e-3", 0.001},
	}
	for _, tc := range cases {
		ev := MarketEvent{BestBid: tc.raw}
		if got := ev.BestBidPrice(); got != tc.want {
			t.Errorf("BestBidPrice(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestAPIMarketDecoding(t *testing.T) {
	m := APIMarket{
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `["111","222"]`,
	}
	if got := m.OutcomeLabels(); !reflect.DeepEqual(got, []string{"Yes", "No"}) {
		t.Errorf("labels = %v", got)
	}
	if got := m.TokenIDs(); !reflect.DeepEqual(got, []string{"111", "222"}) {
		t.Errorf("tokens = %v", got)
	}

	empty := APIMarket{}
	if empty.OutcomeLabels() != nil || empty.TokenIDs() != nil {
		t.Error("empty fields should decode to nil")
	}
	broken := APIMarket{Outcomes: `["Yes"`}
	if broken.OutcomeLabels() != nil {
		t.Error("broken encoding should decode to nil")
	}
}

func TestFlexBool(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"TRUE"`, true},
		{`"false"`, false},
		{`"1"`, true},
	}
	for _, tc := range cases {
		var f flexBool
		if err := f.UnmarshalJSON([]byte(tc.raw)); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if bool(f) != tc.want {
			t.Errorf("flexBool(%s) = %v, want %v", tc.raw, f, tc.want)
		}
	}
	var f flexBool
	if err := f.UnmarshalJSON([]byte(`42`)); err == nil {
		t.Error("numeric value accepted")
	}
}
