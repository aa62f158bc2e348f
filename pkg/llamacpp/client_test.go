package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, content interface{}, status int) (*httptest.Server, *ChatCompletionRequest) {
	t.Helper()
	var captured ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			ID:    "cmpl-1",
			Model: captured.Model,
			Choices: []Choice{{
				Message: Message{Role: "assistant", Content: content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestLocateFaces(t *testing.T) {
	reply := `{"faces":[{"confidence":0.8,"box":{"x":0.1,"y":0.1,"w":0.2,"h":0.3}},],}`
	server, captured := newTestServer(t, reply, http.StatusOK)

	c, err := NewClient(server.URL + "/")
	require.NoError(t, err)

	faces, err := c.LocateFaces(context.Background(), "qwen2-vl", "find faces", "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, faces.Faces, 1)
	assert.InDelta(t, 0.3, faces.Faces[0].Box.H, 1e-9)

	assert.Equal(t, "qwen2-vl", captured.Model)
	assert.Equal(t, float64(0), captured.Temperature)
	require.Len(t, captured.Messages, 1)

	parts, ok := captured.Messages[0].Content.([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/jpeg;base64,"))
}

func TestSimpleQueryContentParts(t *testing.T) {
	parts := []map[string]string{{"type": "text", "text": "a person"}}
	server, _ := newTestServer(t, parts, http.StatusOK)

	c, err := NewClient(server.URL)
	require.NoError(t, err)

	text, err := c.SimpleQuery(context.Background(), "m", "what is this", "")
	require.NoError(t, err)
	assert.Equal(t, "a person", text)
}

func TestLocateFacesErrors(t *testing.T) {
	server, _ := newTestServer(t, "", http.StatusServiceUnavailable)
	c, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = c.LocateFaces(context.Background(), "m", "p", "")
	assert.ErrorContains(t, err, "503")

	garbage, _ := newTestServer(t, "sorry, I can't help with that", http.StatusOK)
	c, err = NewClient(garbage.URL)
	require.NoError(t, err)

	_, err = c.LocateFaces(context.Background(), "m", "p", "")
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, defaultServerURL, c.baseURL)

	_, err = NewClient("localhost:8080")
	assert.Error(t, err)
}
