package jupiter

// Token is one entry of the token list. Address is the Solana mint used in
// place of a ticker by the price endpoints.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	Verified bool   `json:"verified"`
}

// PriceEntry is one value of the /price/v3 response map, keyed by mint.
type PriceEntry struct {
	Price          float64 `json:"usdPrice"`
	PriceChange24h float64 `json:"priceChange24h"`
	BlockID        int64   `json:"blockId"`
}
