package bracket_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantlab/synthdiv/bracket"
)

func TestNext_Symmetry(t *testing.T) {
	q, err := bracket.Next(100, 100.0, 0.0905, 0.5, 0)
	require.NoError(t, err)
	require.InDelta(t, 100.0/1.0905, q.BuyPrice, 1e-9)
	require.InDelta(t, 100.0*1.0905, q.SellPrice, 1e-9)
	require.Greater(t, q.BuyQty, int64(0))
	require.Greater(t, q.SellQty, int64(0))
}

func TestNext_ConfigErrors(t *testing.T) {
	_, err := bracket.Next(100, 100.0, 0, 0.5, 0)
	require.Error(t, err)
	_, err = bracket.Next(100, 100.0, 1.0, 0.5, 0)
	require.Error(t, err)
	_, err = bracket.Next(-1, 100.0, 0.09, 0.5, 0)
	require.Error(t, err)
	_, err = bracket.Next(100, 0, 0.09, 0.5, 0)
	require.Error(t, err)
}

func TestSnapToNode(t *testing.T) {
	base := 100.0
	r := 0.0905
	node1 := bracket.Node(base, r, 1)
	snapped := bracket.SnapToNode(node1+0.0001, base, r)
	require.InDelta(t, node1, snapped, 1e-6)
}

func TestRoundHalfEven(t *testing.T) {
	require.Equal(t, int64(2), bracket.RoundHalfEven(2.5))
	require.Equal(t, int64(4), bracket.RoundHalfEven(3.5))
	require.Equal(t, int64(4), bracket.RoundHalfEven(4.49))
	require.Equal(t, int64(4), bracket.RoundHalfEven(4.5))
}
