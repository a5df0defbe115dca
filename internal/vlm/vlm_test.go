package vlm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverReturning(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := `{"candidates":[{"content":{"parts":[{"text":` + jsonQuote(text) + `}]}}]}`
		_, _ = w.Write([]byte(resp))
	}))
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestHTTPClientIdentifyParsesPlainJSON(t *testing.T) {
	server := serverReturning(t, `{"dimensions":[{"value":"0.188\" Wd. x 7/8\" Lg. Key","x_percent":50,"y_percent":40,"confidence":0.9}]}`)
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	dims, err := client.Identify(context.Background(), []byte("fake-png"))
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, `0.188" Wd. x 7/8" Lg. Key`, dims[0].Value)
	assert.InDelta(t, 50, dims[0].XPercent, 0.001)
}

func TestHTTPClientIdentifyUnwrapsCodeFence(t *testing.T) {
	fenced := "```json\n{\"dimensions\":[{\"value\":\"45\\u00b0\",\"x_percent\":10,\"y_percent\":10,\"confidence\":0.8}]}\n```"
	server := serverReturning(t, fenced)
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	dims, err := client.Identify(context.Background(), []byte("fake-png"))
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "45°", dims[0].Value)
}

func TestHTTPClientIdentifyNonJSONFailsWithParseError(t *testing.T) {
	server := serverReturning(t, "not json at all")
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	_, err := client.Identify(context.Background(), []byte("fake-png"))
	require.Error(t, err)
	assert.Equal(t, model.ParseError, model.KindOf(err))
}

func TestHTTPClientIdentifyEmptyListIsValid(t *testing.T) {
	server := serverReturning(t, `{"dimensions":[]}`)
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	dims, err := client.Identify(context.Background(), []byte("fake-png"))
	require.NoError(t, err)
	assert.Empty(t, dims)
}
