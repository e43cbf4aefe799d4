package classification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `[
	{"recurso": "tear01", "descricao": "QUEBRA DE URDUME", "corStatus": "FF007B38", "codigo": 12, "status": 0},
	{"recurso": "TEAR02", "descricao": "OPERANDO", "corStatus": "FFabcdef", "codigo": 1, "status": 1},
	{"recurso": "TEAR03", "descricao": "PARADA", "corStatus": "bad", "aguardandoClassificacao": true},
	{"recurso": "TEAR04"},
	{"recurso": ""}
]`

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(feed))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, models.Classification{Description: "QUEBRA DE URDUME", Color: "#007B38", Code: 12}, entries["TEAR01"])
	assert.Equal(t, models.Classification{Description: "OPERANDO", Color: "#ABCDEF", Code: 1, Running: true}, entries["TEAR02"])
	assert.Equal(t, constants.ClassificationAwaiting, entries["TEAR03"].Description)
	assert.Equal(t, constants.ColorGray, entries["TEAR03"].Color)
	assert.Equal(t, constants.ClassificationAwaiting, entries["TEAR04"].Description)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestConvertColor(t *testing.T) {
	assert.Equal(t, "#007B38", ConvertColor("FF007B38"))
	assert.Equal(t, "#112233", ConvertColor("#112233"))
	assert.Equal(t, constants.ColorGray, ConvertColor(""))
	assert.Equal(t, constants.ColorGray, ConvertColor("ZZ007B38"))
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feed))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, zerolog.Nop())
	entries := c.Fetch(context.Background())
	assert.Len(t, entries, 4)
}

func TestClient_FetchFailuresYieldEmptyMap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.WriteHeader(http.StatusBadGateway)
		case "/garbage":
			w.Write([]byte("<html>"))
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(feed))
		}
	}))
	defer server.Close()

	for _, path := range []string{"/status", "/garbage", "/slow"} {
		c := NewClient(server.URL+path, 50*time.Millisecond, zerolog.Nop())
		entries := c.Fetch(context.Background())
		assert.NotNil(t, entries, path)
		assert.Empty(t, entries, path)
	}
}

func TestDisabled(t *testing.T) {
	assert.Empty(t, Disabled{}.Fetch(context.Background()))
}
