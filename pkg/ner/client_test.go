package ner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAnnotateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GFP expression in E. coli", body["text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"annotations":[{"id":["NCBITaxon:562"],"mention":"E. coli","prob":NaN,"span":{"begin":18,"end":25}},{"id":["CUI-less"],"mention":"GFP","prob":0.5,"span":{"begin":0,"end":3}}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second})
	agg, err := c.AnnotateText(context.Background(), "GFP expression in E. coli")
	require.NoError(t, err)
	require.Len(t, agg.Groups, 1)
	assert.Equal(t, "E. coli", agg.Groups[0].Label)
	assert.Len(t, agg.Ungrounded, 1)
}

func TestClientServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.AnnotateText(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrServiceFailed))

	down := NewClient(ClientConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err = down.AnnotateText(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrServiceFailed))
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"annotations":[]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second, RatePerSecond: 0.001})
	_, err := c.AnnotateText(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.AnnotateText(ctx, "second")
	assert.True(t, errors.Is(err, ErrServiceFailed))
}
