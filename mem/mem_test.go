package mem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gokernel/errno"
	"gokernel/mem"
)

func TestRefpgNewIsZeroed(t *testing.T) {
	p := mem.NewPhysmem(4)
	pg, err := p.Refpg_new_nozero()
	require.Zero(t, err)
	copy(p.Bytes(pg), []byte{1, 2, 3})
	p.Refdown(pg)

	pg2, err := p.Refpg_new()
	require.Zero(t, err)
	for _, b := range p.Bytes(pg2) {
		require.Zero(t, b)
	}
}

func TestRefcountingFreesAtZero(t *testing.T) {
	p := mem.NewPhysmem(1)
	require.Equal(t, 1, p.Free())

	pg, err := p.Refpg_new()
	require.Zero(t, err)
	require.Equal(t, 0, p.Free())
	require.Equal(t, 1, p.Refcnt(pg))

	p.Refup(pg)
	require.Equal(t, 2, p.Refcnt(pg))

	require.False(t, p.Refdown(pg))
	require.Equal(t, 0, p.Free())

	require.True(t, p.Refdown(pg))
	require.Equal(t, 1, p.Free())
}

func TestArenaExhaustion(t *testing.T) {
	p := mem.NewPhysmem(1)
	_, err := p.Refpg_new()
	require.Zero(t, err)

	_, err = p.Refpg_new()
	require.Equal(t, errno.ENOMEM, err)
}

func TestTotalIsFixed(t *testing.T) {
	p := mem.NewPhysmem(7)
	require.Equal(t, 7, p.Total())
	p.Refpg_new()
	require.Equal(t, 7, p.Total())
}
