package market

import "strings"

// cryptoNames are asset names that flag a market as crypto-flavored.
// Matched as substrings.
var cryptoNames = []string{
	"bitcoin", "ethereum", "solana", "dogecoin", "ripple",
	"cardano", "chainlink", "crypto",
}

// cryptoSymbols are short ticker symbols, matched as whole words only so
// "whether" does not light up on "eth".
var cryptoSymbols = []string{
	"btc", "eth", "sol", "doge", "xrp", "ada", "link",
}

// cryptoVerbs are the directional/resolution phrasings crypto price markets
// use. A ticker alone is not enough: "Will the Ethereum ETF be approved" is
// not a price market.
var cryptoVerbs = []string{
	"price of",
	"hit $",
	"reach $",
	"above $",
	"below $",
	"close at",
	"up or down",
	"all-time high",
	"all time high",
	"dip to",
}

// IsCryptoQuestion reports whether a market question describes a crypto
// price market. These move faster than event markets, so the arbitrage
// detector accepts thinner edges on them.
func IsCryptoQuestion(question string) bool {
	q := strings.ToLower(question)

	if !mentionsCryptoAsset(q) {
		return false
	}
	for _, v := range cryptoVerbs {
		if strings.Contains(q, v) {
			return true
		}
	}
	return false
}

func mentionsCryptoAsset(q string) bool {
	for _, name := range cryptoNames {
		if strings.Contains(q, name) {
			return true
		}
	}
	for _, word := range strings.FieldsFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		for _, sym := range cryptoSymbols {
			if word == sym {
				return true
			}
		}
	}
	return false
}
