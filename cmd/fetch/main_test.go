package main

import (
	"bytes"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"

	"coinpulse/internal/provider"
)

func TestRender(t *testing.T) {
	t.Parallel()

	snap := provider.Snapshot{
		{ID: "bitcoin", Symbol: "BTC", Price: 67000},
		{ID: "ethereum", Symbol: "ETH", Price: 3500},
		{ID: "solana", Symbol: "SOL", Price: 150},
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "all", limit: 0, want: []string{"bitcoin", "ethereum", "solana"}},
		{name: "limited", limit: 2, want: []string{"bitcoin", "ethereum"}},
		{name: "limit above length", limit: 10, want: []string{"bitcoin", "ethereum", "solana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Act
			var buf bytes.Buffer
			require.NoError(t, render(&buf, "CoinCap", snap, tt.limit))

			// Assert
			var got output
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			require.Equal(t, "CoinCap", got.Provider)
			ids := make([]string, 0, len(got.Assets))
			for _, a := range got.Assets {
				ids = append(ids, a.ID)
			}
			require.Equal(t, tt.want, ids)
		})
	}
}

func TestRenderIsIndented(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "Mock", provider.Snapshot{{ID: "bitcoin"}}, 0))
	require.Contains(t, buf.String(), "\n  \"provider\": \"Mock\"")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("}\n")))
}
