package models

// CoinConfig is the catalog record of one asset, maintained by the
// catalog service and read here from Redis.
type CoinConfig struct {
	Coin           string `redis:"coin"`
	Name           string `redis:"name"`
	CurrencySymbol string `redis:"currency_symbol"`
	Active         bool   `redis:"active"`
}

// PairConfig is the catalog record of one tradable pair.
type PairConfig struct {
	Pair   string `redis:"pair"`
	Active bool   `redis:"active"`
}

// OrderLimit carries the per-deployment order bounds from the catalog.
type OrderLimit map[string]string
