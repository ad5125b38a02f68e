package collector

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartJSON = `{"chart":{"result":[{"timestamp":[1709164800,1709251200,1709510400],
"indicators":{"quote":[{"open":[10,null,12],"high":[11,null,13],"low":[9,null,11],"close":[10.5,null,12.5],"volume":[1000,null,3000]}]}}],"error":null}}`

const optionsJSON = `{"optionChain":{"result":[{
"expirationDates":[1709856000,1710460800],
"quote":{"regularMarketPrice":101.5,"regularMarketPreviousClose":100.0},
"options":[{"expirationDate":1709856000,
 "calls":[{"strike":105,"bid":1.0,"ask":1.2,"impliedVolatility":0.41},{"strike":100,"bid":3.0,"ask":3.2,"impliedVolatility":0.45}],
 "puts":[{"strike":100,"ask":2.2,"impliedVolatility":0.47}]}]}],"error":null}}`

func newYahooTestServer(t *testing.T) *YahooFetcher {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartJSON))
	})
	mux.HandleFunc("/v7/finance/options/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(optionsJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	f.Client = srv.Client()
	return f
}

func TestYahoo_FetchDailyBars_SkipsNullBars(t *testing.T) {
	f := newYahooTestServer(t)
	bars, err := f.FetchDailyBars(context.Background(), "AAPL", 31)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 3000.0, bars[1].Volume)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestYahoo_FetchExpirations(t *testing.T) {
	f := newYahooTestServer(t)
	exps, err := f.FetchExpirations(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}, exps)
}

func TestYahoo_FetchChain(t *testing.T) {
	f := newYahooTestServer(t)
	exp := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	chain, err := f.FetchChain(context.Background(), "AAPL", exp)
	require.NoError(t, err)
	require.Len(t, chain.Calls, 2)
	assert.Equal(t, 100.0, chain.Calls[0].Strike)
	assert.Equal(t, 0.45, chain.Calls[0].ImpliedVol)
	require.Len(t, chain.Puts, 1)
	assert.True(t, math.IsNaN(chain.Puts[0].Bid))
	_, ok := chain.Puts[0].Mid()
	assert.False(t, ok)
}

func TestYahoo_FetchUnderlyingPrice(t *testing.T) {
	f := newYahooTestServer(t)
	p, err := f.FetchUnderlyingPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.5, p)
}

func TestYahoo_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	_, err := f.FetchExpirations(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "status 429")
	_, err = f.FetchUnderlyingPrice(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{12.5, 12.5},
		{"1,234.5", 1234.5},
		{"35.2%", 0.352},
		{"C101.25", 101.25},
		{map[string]interface{}{"v": "7.5"}, 7.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, toFloat(tt.in), 1e-12)
	}
	assert.True(t, math.IsNaN(toFloat(nil)))
	assert.True(t, math.IsNaN(toFloat("n/a")))
}
