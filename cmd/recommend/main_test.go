package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"coinpulse/internal/provider"
)

func TestSelectAssets(t *testing.T) {
	t.Parallel()

	snap := provider.Snapshot{
		{ID: "bitcoin", Symbol: "BTC"},
		{ID: "ethereum", Symbol: "ETH"},
		{ID: "solana", Symbol: "SOL"},
	}

	tests := []struct {
		name string
		ids  string
		want []string
	}{
		{name: "by id", ids: "solana", want: []string{"solana"}},
		{name: "by symbol keeps request order", ids: "eth, btc", want: []string{"ethereum", "bitcoin"}},
		{name: "unknown skipped", ids: "doge,SOL", want: []string{"solana"}},
		{name: "all", ids: "ALL", want: []string{"bitcoin", "ethereum", "solana"}},
		{name: "empty", ids: " , ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got []string
			for _, a := range selectAssets(snap, tt.ids) {
				got = append(got, a.ID)
			}
			require.Equal(t, tt.want, got)
		})
	}
}
