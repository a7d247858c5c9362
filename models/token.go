package models

import "time"

// TokenConfig is the token a broker has configured in the store.
type TokenConfig struct {
	Address string
	Chain   string
}

// Complete reports whether both address and chain are set.
func (c TokenConfig) Complete() bool {
	return c.Address != "" && c.Chain != ""
}

// TokenKey builds the token cache key for a chain and address.
func TokenKey(chain, address string) string {
	return chain + ":" + address
}

// TokenInfo is cached token metadata for a broker's token.
type TokenInfo struct {
	BrokerID       string    `json:"brokerId"`
	TokenAddress   string    `json:"tokenAddress"`
	TokenChain     string    `json:"tokenChain"`
	TokenSymbol    string    `json:"tokenSymbol"`
	TokenName      string    `json:"tokenName"`
	TokenPrice     float64   `json:"tokenPrice"`
	TokenMarketCap float64   `json:"tokenMarketCap"`
	TokenImageURL  string    `json:"tokenImageUrl"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Key returns the cache key of the token.
func (t TokenInfo) Key() string {
	return TokenKey(t.TokenChain, t.TokenAddress)
}

// Summary returns the subset merged into aggregated stats.
func (t TokenInfo) Summary() *TokenSummary {
	return &TokenSummary{
		Address:   t.TokenAddress,
		Chain:     t.TokenChain,
		Symbol:    t.TokenSymbol,
		Name:      t.TokenName,
		Price:     t.TokenPrice,
		MarketCap: t.TokenMarketCap,
		ImageURL:  t.TokenImageURL,
	}
}

// TokenSummary is the token subset attached to an AggregatedStat.
type TokenSummary struct {
	Address   string  `json:"tokenAddress"`
	Chain     string  `json:"tokenChain"`
	Symbol    string  `json:"tokenSymbol"`
	Name      string  `json:"tokenName"`
	Price     float64 `json:"tokenPrice"`
	MarketCap float64 `json:"tokenMarketCap"`
	ImageURL  string  `json:"tokenImageUrl"`
}
