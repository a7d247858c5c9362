package gecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brokerboard/config"
	"brokerboard/logger"
	"brokerboard/models"
	"brokerboard/reader"
)

// Client fetches token metadata from GeckoTerminal.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
	now        func() time.Time
}

func NewClient(cfg config.GeckoConfig) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: reader.NewHTTPClient(cfg.ConnectionPool, cfg.Timeout, cfg.UserAgent),
		limiter:    reader.NewLimiter(cfg.RateLimit),
		log:        logger.GetLogger(),
		now:        time.Now,
	}
	c.log.WithComponent("gecko_reader").WithFields(logger.Fields{
		"base_url": c.baseURL,
		"timeout":  cfg.Timeout,
	}).Info("gecko reader initialized")
	return c
}

// FetchToken returns metadata for the token at address on chain. BrokerID is
// left empty for the caller to fill.
func (c *Client) FetchToken(ctx context.Context, chain, address string) (models.TokenInfo, error) {
	endpoint := fmt.Sprintf("%s/networks/%s/tokens/%s", c.baseURL, url.PathEscape(chain), url.PathEscape(address))

	begin := time.Now()
	var resp models.GeckoTokenResp
	if err := reader.GetJSON(ctx, c.httpClient, c.limiter, endpoint, &resp); err != nil {
		return models.TokenInfo{}, err
	}

	attrs := resp.Data.Attributes
	price, err := parseDecimal(attrs.PriceUSD)
	if err != nil {
		return models.TokenInfo{}, fmt.Errorf("price_usd: %w", err)
	}
	marketCap, err := parseDecimal(attrs.MarketCapUSD)
	if err != nil {
		return models.TokenInfo{}, fmt.Errorf("market_cap_usd: %w", err)
	}

	logger.LogPerformanceEntry(c.log.WithComponent("gecko_reader"), "gecko_reader", "fetch_token", time.Since(begin), logger.Fields{
		"chain":   chain,
		"address": address,
	})

	return models.TokenInfo{
		TokenAddress:   address,
		TokenChain:     chain,
		TokenSymbol:    attrs.Symbol,
		TokenName:      attrs.Name,
		TokenPrice:     price,
		TokenMarketCap: marketCap,
		TokenImageURL:  attrs.ImageURL,
		LastUpdated:    c.now().UTC(),
	}, nil
}

// parseDecimal treats null and empty strings as zero.
func parseDecimal(s *string) (float64, error) {
	if s == nil || *s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(*s, 64)
}
