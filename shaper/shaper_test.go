package shaper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gokernel/shaper"
)

func TestDefaultConfigMatchesWarmup2Defaults(t *testing.T) {
	cfg := shaper.DefaultConfig()
	require.Equal(t, 1.0, cfg.Lambda)
	require.Equal(t, 0.35, cfg.Mu)
	require.Equal(t, 1.5, cfg.R)
	require.EqualValues(t, 10, cfg.BucketDepth)
	require.EqualValues(t, 3, cfg.TokenCost)
	require.EqualValues(t, 20, cfg.NumPackets)
}

func TestRunServesEveryPacketOfAZeroLatencyTrace(t *testing.T) {
	cfg := shaper.Config{
		R:           10000, // collapses the token-generator's tick to 0
		BucketDepth: 10,
		Packets: []shaper.PacketSpec{
			{InterArrival: 0, TokenNeed: 0, ServiceTime: 0},
			{InterArrival: 0, TokenNeed: 0, ServiceTime: 0},
			{InterArrival: 0, TokenNeed: 0, ServiceTime: 0},
		},
	}
	e := shaper.New(cfg)

	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.PacketsServed)
	require.Zero(t, stats.PacketsDropped)
	require.Positive(t, stats.TotalEmulationTime)
}

func TestRunDropsPacketsNeedingMoreTokensThanBucketDepth(t *testing.T) {
	cfg := shaper.Config{
		R:           10000,
		BucketDepth: 5,
		Packets: []shaper.PacketSpec{
			{InterArrival: 0, TokenNeed: 50, ServiceTime: 0},
		},
	}
	e := shaper.New(cfg)

	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.PacketsServed)
	require.EqualValues(t, 1, stats.PacketsDropped)
}

func TestRunCancellationStopsCleanlyBeforeAnyPacketArrives(t *testing.T) {
	cfg := shaper.Config{
		R:           10000,
		BucketDepth: 10,
		Packets: []shaper.PacketSpec{
			{InterArrival: 200 * time.Millisecond, TokenNeed: 1, ServiceTime: time.Millisecond},
			{InterArrival: 200 * time.Millisecond, TokenNeed: 1, ServiceTime: time.Millisecond},
			{InterArrival: 200 * time.Millisecond, TokenNeed: 1, ServiceTime: time.Millisecond},
		},
	}
	e := shaper.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stats, err := e.Run(ctx)
	require.NoError(t, err, "cancellation is a clean shutdown, not a run failure")
	require.Zero(t, stats.PacketsServed, "the 200ms inter-arrival gap means nothing ever left the producer before cancellation")
	require.Zero(t, stats.PacketsDropped)
}

func TestRunMixesServedAndOverflowPackets(t *testing.T) {
	cfg := shaper.Config{
		R:           10000,
		BucketDepth: 5,
		Packets: []shaper.PacketSpec{
			{InterArrival: 0, TokenNeed: 0, ServiceTime: 0},
			{InterArrival: 0, TokenNeed: 99, ServiceTime: 0},
			{InterArrival: 0, TokenNeed: 0, ServiceTime: 0},
		},
	}
	e := shaper.New(cfg)

	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.PacketsServed)
	require.EqualValues(t, 1, stats.PacketsDropped)
}
