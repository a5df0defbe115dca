package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientDetectParsesSpans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"responses": [{
				"textAnnotations": [
					{"description": "full page text", "boundingPoly": {"vertices": [{"x":0,"y":0}]}},
					{"description": "0.188\"", "boundingPoly": {"vertices": [
						{"x":100,"y":200},{"x":300,"y":200},{"x":300,"y":240},{"x":100,"y":240}
					]}}
				]
			}]
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	spans, err := client.Detect(context.Background(), []byte("fake-png"), 1000, 1000)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, `0.188"`, spans[0].Text)
	assert.Equal(t, 100, spans[0].BBox.XMin)
	assert.Equal(t, 200, spans[0].BBox.YMin)
	assert.Equal(t, 300, spans[0].BBox.XMax)
	assert.Equal(t, 240, spans[0].BBox.YMax)
	assert.Equal(t, DefaultConfidence, spans[0].Confidence)
}

func TestHTTPClientDetectNon2xxFailsWithOcrAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	_, err := client.Detect(context.Background(), []byte("fake-png"), 1000, 1000)
	require.Error(t, err)
}

func TestHTTPClientDetectDropsEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"textAnnotations":[
			{"description":"full page","boundingPoly":{"vertices":[{"x":0,"y":0}]}},
			{"description":"   ","boundingPoly":{"vertices":[{"x":1,"y":1},{"x":2,"y":2}]}}
		]}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	spans, err := client.Detect(context.Background(), []byte("fake-png"), 1000, 1000)
	require.NoError(t, err)
	assert.Empty(t, spans)
}
