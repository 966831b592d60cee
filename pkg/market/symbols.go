package market

import (
	"regexp"
	"strings"
)

// knownCrypto lists bare tickers classified as crypto without any suffix hint.
var knownCrypto = map[string]struct{}{
	"BTC": {}, "ETH": {}, "DOGE": {}, "SHIB": {}, "PEPE": {}, "BONK": {},
	"FLOKI": {}, "WIF": {}, "SOL": {}, "ADA": {}, "XRP": {}, "BNB": {},
}

var (
	fxPairPattern = regexp.MustCompile(`^[A-Z]{3}/[A-Z]{3}$`)
	cryptoPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}[-:]?(USD|USDT|USDC)$`)
)

// DetectAssetClass classifies a raw user-entered ticker. Rules are checked in
// order; the first match wins and anything unrecognized is a stock.
func DetectAssetClass(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "/FX") || fxPairPattern.MatchString(s) {
		return AssetFX
	}
	if strings.HasPrefix(s, "X:") || cryptoPattern.MatchString(s) {
		return AssetCrypto
	}
	if _, ok := knownCrypto[s]; ok {
		return AssetCrypto
	}
	return AssetStocks
}

// ToPolygonSymbol rewrites a raw ticker into Polygon's wire format for the
// given asset class: crypto "X:{base}USD", fx "C:{pair}", stocks unchanged.
func ToPolygonSymbol(symbol string, class AssetClass) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch class {
	case AssetCrypto:
		base, quote := splitCryptoPair(s)
		return "X:" + base + quote
	case AssetFX:
		s = strings.TrimSuffix(s, "/FX")
		return "C:" + strings.ReplaceAll(s, "/", "")
	default:
		return s
	}
}

// splitCryptoPair strips formatting characters and separates base from quote.
// USDT and USDC both collapse to USD; symbols without a recognizable quote
// keep the whole string as base with an assumed USD quote.
func splitCryptoPair(s string) (base, quote string) {
	s = strings.TrimPrefix(s, "X:")
	for _, sep := range []string{"-", "/", ":"} {
		s = strings.ReplaceAll(s, sep, "")
	}
	for _, q := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], "USD"
		}
	}
	return s, "USD"
}
