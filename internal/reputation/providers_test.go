package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbuseIPDBSource_ParsesConfidenceScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/check", r.URL.Path)
		require.Equal(t, "203.0.113.9", r.URL.Query().Get("ipAddress"))
		require.Equal(t, "secret", r.Header.Get("Key"))
		w.Write([]byte(`{"data":{"abuseConfidenceScore":87}}`))
	}))
	defer srv.Close()

	src := NewAbuseIPDBSource("secret")
	src.BaseURL = srv.URL

	score, ok, err := src.Attempt(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 87, score)
}

func TestAbuseIPDBSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewAbuseIPDBSource("secret")
	src.BaseURL = srv.URL

	_, ok, err := src.Attempt(context.Background(), "203.0.113.9")
	require.Error(t, err)
	require.False(t, ok)
}

func TestIPInfoSource_BogonScoresHigh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/198.51.100.1", r.URL.Path)
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		w.Write([]byte(`{"bogon":true}`))
	}))
	defer srv.Close()

	src := NewIPInfoSource("tok")
	src.BaseURL = srv.URL

	score, ok, err := src.Attempt(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 80, score)
}

func TestIPInfoSource_RegularAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"198.51.100.1"}`))
	}))
	defer srv.Close()

	src := NewIPInfoSource("tok")
	src.BaseURL = srv.URL

	score, ok, err := src.Attempt(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 20, score)
}

func TestShodanSource_ScoresByOpenPorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shodan/host/203.0.113.9", r.URL.Path)
		require.Equal(t, "k", r.URL.Query().Get("key"))
		w.Write([]byte(`{"ports":[22,80,443]}`))
	}))
	defer srv.Close()

	src := NewShodanSource("k")
	src.BaseURL = srv.URL

	score, ok, err := src.Attempt(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 25, score)
}

func TestShodanSource_ScoreCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ports":[1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20]}`))
	}))
	defer srv.Close()

	src := NewShodanSource("k")
	src.BaseURL = srv.URL

	score, _, err := src.Attempt(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, 100, score)
}

func TestSources_ConfiguredOnlyWithKey(t *testing.T) {
	require.False(t, NewAbuseIPDBSource("").Configured())
	require.True(t, NewAbuseIPDBSource("x").Configured())
	require.False(t, NewIPInfoSource("").Configured())
	require.False(t, NewShodanSource("").Configured())
}
