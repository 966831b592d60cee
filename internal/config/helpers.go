package config

import (
	marketpkg "marketfeed/pkg/market"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on
// error. It isolates provider config so tests and tools can skip the main
// application config.
func MustLoadMarket() *marketpkg.Config {
	return marketpkg.MustLoad()
}
