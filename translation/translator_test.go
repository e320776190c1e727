package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Equal(t, "en", req.SourceLang)
		assert.Equal(t, "es", req.TargetLang)

		json.NewEncoder(w).Encode(translateResponse{TranslatedText: "hola"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	out, err := c.Translate(context.Background(), "hello", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
}

func TestClientTranslateNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Translate(context.Background(), "hello", "en", "es")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientTranslateContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL)
	_, err := c.Translate(ctx, "hello", "en", "es")
	assert.Error(t, err)
}

func TestFuncAdapter(t *testing.T) {
	f := Func(func(ctx context.Context, text, from, to string) (string, error) {
		return text + "!", nil
	})
	out, err := f.Translate(context.Background(), "hi", "en", "es")
	assert.NoError(t, err)
	assert.Equal(t, "hi!", out)
}
