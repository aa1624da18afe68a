package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/hypetrader/internal/config"
)

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "hypetrader-test",
		Subreddit:    "CryptoCurrency",
		Limit:        25,
		Comments:     true,
	}
}

func newRedditServer(t *testing.T, tokenCalls *int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		*tokenCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/r/CryptoCurrency/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"data":{"name":"t3_a","title":"Just bought some BTC on Binance!","selftext":""}},
			{"data":{"name":"t3_b","title":"SOL on kraken","selftext":"thoughts?"}}
		]}}`))
	})
	mux.HandleFunc("/r/CryptoCurrency/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"children":[{"data":{"name":"t1_c","body":"DOGE on bybit"}}]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRedditFetch(t *testing.T) {
	var tokenCalls int
	srv := newRedditServer(t, &tokenCalls)

	r, err := NewReddit(testFeedConfig(), nil)
	require.NoError(t, err)
	r.authURL = srv.URL + "/token"
	r.apiURL = srv.URL

	texts, err := r.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Just bought some BTC on Binance!",
		"SOL on kraken",
		"thoughts?",
		"DOGE on bybit",
	}, texts)

	// Повторный опрос не отдает уже виденные посты и не запрашивает новый токен
	texts, err = r.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, texts)
	assert.Equal(t, 1, tokenCalls)
}

func TestRedditUnavailableWithoutCredentials(t *testing.T) {
	cfg := testFeedConfig()
	cfg.ClientSecret = ""

	_, err := NewReddit(cfg, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRedditFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r, err := NewReddit(testFeedConfig(), nil)
	require.NoError(t, err)
	r.authURL = srv.URL
	r.apiURL = srv.URL

	_, err = r.Fetch(context.Background())
	assert.Error(t, err)
}

func TestStaticFeed(t *testing.T) {
	s := NewStatic([]string{"a"}, []string{"b", "c"})
	ctx := context.Background()

	first, _ := s.Fetch(ctx)
	second, _ := s.Fetch(ctx)
	third, _ := s.Fetch(ctx)

	assert.Equal(t, []string{"a"}, first)
	assert.Equal(t, []string{"b", "c"}, second)
	assert.Empty(t, third)
}
