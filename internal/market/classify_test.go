package market

import "testing"

func TestIsCryptoQuestion(t *testing.T) {
	cases := []struct {
		question string
		want     bool
	}{
		{"Will Bitcoin hit $100,000 by December?", true},
		{"Will the price of Ethereum close above $5,000?", true},
		{"BTC up or down today?", true},
		{"Will SOL reach $500 this year?", true},
		{"Will Dogecoin dip to $0.10?", true},
		{"Will XRP hit an all-time high in 2026?", true},

		// Asset mentioned but no price phrasing.
		{"Will the Ethereum ETF be approved?", false},
		{"Will a Bitcoin strategic reserve pass Congress?", false},

		// Price phrasing but no crypto asset.
		{"Will gold hit $3,000 per ounce?", false},
		{"Will the S&P close at a record?", false},

		// Symbols must match whole words only.
		{"Will we decide whether to hit $100 targets?", false},
		{"Will the hyperlink above $2 campaign work?", false},

		{"", false},
	}
	for _, tc := range cases {
		if got := IsCryptoQuestion(tc.question); got != tc.want {
			t.Errorf("IsCryptoQuestion(%q) = %v, want %v", tc.question, got, tc.want)
		}
	}
}
