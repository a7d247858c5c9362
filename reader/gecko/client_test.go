package gecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerboard/config"
	"brokerboard/reader"
)

func TestFetchToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/networks/arbitrum/tokens/0xabc", r.URL.Path)
		w.Write([]byte(`{"data":{"attributes":{"symbol":"WOO","name":"WOO Network","price_usd":"0.1834","market_cap_usd":null,"image_url":"https://img/woo.png"}}}`))
	}))
	defer srv.Close()

	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	c := NewClient(config.GeckoConfig{BaseURL: srv.URL, Timeout: time.Second})
	c.now = func() time.Time { return fixed }

	info, err := c.FetchToken(context.Background(), "arbitrum", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "WOO", info.TokenSymbol)
	assert.Equal(t, "WOO Network", info.TokenName)
	assert.InDelta(t, 0.1834, info.TokenPrice, 1e-9)
	assert.Zero(t, info.TokenMarketCap)
	assert.Equal(t, "arbitrum:0xabc", info.Key())
	assert.Equal(t, fixed, info.LastUpdated)
	assert.Empty(t, info.BrokerID)
}

func TestFetchTokenErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/networks/eth/tokens/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{"attributes":{"symbol":"X","price_usd":"abc"}}}`))
	}))
	defer srv.Close()

	c := NewClient(config.GeckoConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := c.FetchToken(context.Background(), "eth", "missing")
	assert.True(t, errors.Is(err, reader.ErrUnexpectedStatus), "got %v", err)

	_, err = c.FetchToken(context.Background(), "eth", "bad-price")
	assert.Error(t, err)
}
