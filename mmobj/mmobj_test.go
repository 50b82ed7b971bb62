package mmobj_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gokernel/mem"
	"gokernel/mmobj"
)

func TestAnonLookupFillsZeroed(t *testing.T) {
	pm := mem.NewPhysmem(4)
	a := mmobj.NewAnon(pm)

	f, err := a.Lookup(0, true)
	require.Zero(t, err)
	for _, b := range pm.Bytes(f.Pa) {
		require.Zero(t, b)
	}
	require.True(t, f.Pinned())

	f2, err := a.Lookup(0, true)
	require.Zero(t, err)
	require.Same(t, f, f2)
}

func TestAnonBottomIsItself(t *testing.T) {
	pm := mem.NewPhysmem(4)
	a := mmobj.NewAnon(pm)
	require.Equal(t, mmobj.Obj(a), a.Bottom())
}

// TestAnonSelfCollectRequiresRefcountToMatchResidentPages exercises the
// self-collect rule precisely: a Put that merely brings refcount down
// to one more than the resident-page count leaves the object alive; a
// Put that brings it down to exactly the resident-page count frees
// every resident page.
func TestAnonSelfCollectRequiresRefcountToMatchResidentPages(t *testing.T) {
	pm := mem.NewPhysmem(4)
	a := mmobj.NewAnon(pm)
	a.Ref() // a second owner, refcount 2

	f, err := a.Lookup(0, true)
	require.Zero(t, err)
	require.Equal(t, 3, pm.Free())

	a.Put() // refcount 2 -> 1; 1 == resident(1): the last owner's put self-collects
	require.Equal(t, 4, pm.Free())
	require.False(t, f.Pinned(), "self-collect unpins every resident frame before freeing it")
}

func TestAnonSurvivesPutWhileStillShared(t *testing.T) {
	pm := mem.NewPhysmem(4)
	a := mmobj.NewAnon(pm)
	a.Ref() // refcount 2, no pages resident yet

	a.Put() // refcount 2 -> 1; 1 != resident(0): still alive
	require.NotPanics(t, func() { a.Ref() })
}

func TestAnonPutFreesAtRefcountZero(t *testing.T) {
	pm := mem.NewPhysmem(4)
	a := mmobj.NewAnon(pm)
	a.Put() // refcount 1 -> 0; 0 == resident(0): dead
	require.Panics(t, func() { a.Ref() }, "Ref on a dead object must panic")
}

// TestShadowCOWSplit exercises the fork COW chain end to end: a shadow
// over an anon object reads the bottom's page until a write splits off
// a private copy, which the bottom and any sibling shadow never see.
func TestShadowCOWSplit(t *testing.T) {
	pm := mem.NewPhysmem(4)
	bottom := mmobj.NewAnon(pm)

	f0, err := bottom.Lookup(0, true)
	require.Zero(t, err)
	copy(pm.Bytes(f0.Pa), []byte{0xAA})

	parentShadow := mmobj.NewShadow(pm, bottom, bottom.Bottom())
	childShadow := mmobj.NewShadow(pm, bottom, bottom.Bottom())

	// both shadows read through to the bottom's page before either
	// writes.
	pf, err := parentShadow.Lookup(0, false)
	require.Zero(t, err)
	require.Equal(t, uint8(0xAA), pm.Bytes(pf.Pa)[0])

	cf, err := childShadow.Lookup(0, false)
	require.Zero(t, err)
	require.Equal(t, uint8(0xAA), pm.Bytes(cf.Pa)[0])
	require.Equal(t, pf.Pa, cf.Pa, "both shadows share the unsplit bottom page")

	// the child writes: Lookup(forwrite) must materialize a private copy.
	cwf, err := childShadow.Lookup(0, true)
	require.Zero(t, err)
	pm.Bytes(cwf.Pa)[0] = 0xBB

	// the parent's read-only view and the bottom are unaffected.
	pf2, err := parentShadow.Lookup(0, false)
	require.Zero(t, err)
	require.Equal(t, uint8(0xAA), pm.Bytes(pf2.Pa)[0])

	bf, err := bottom.Lookup(0, false)
	require.Zero(t, err)
	require.Equal(t, uint8(0xAA), pm.Bytes(bf.Pa)[0])
}

func TestShadowBottomIsCachedAcrossChain(t *testing.T) {
	pm := mem.NewPhysmem(4)
	root := mmobj.NewAnon(pm)
	mid := mmobj.NewShadow(pm, root, root.Bottom())
	top := mmobj.NewShadow(pm, mid, mid.Bottom())

	require.Equal(t, mmobj.Obj(root), top.Bottom())
	require.Equal(t, mmobj.Obj(root), mid.Bottom())
}

// TestShadowSelfCollectCascadesToBottom forks a single shadow over an
// anon bottom, arranges the shadow's own refcount so one Put
// self-collects it, and checks that death cascades: the shadow's Put
// releases both of the Refs NewShadow took on the bottom (as
// "shadowed" and as "bottom"), and the second of those releases is
// itself the bottom's last reference, so the whole chain's pages come
// back.
func TestShadowSelfCollectCascadesToBottom(t *testing.T) {
	pm := mem.NewPhysmem(4)
	bottom := mmobj.NewAnon(pm)
	bottom.Lookup(0, true) // bottom: refcount 1, resident 1

	s := mmobj.NewShadow(pm, bottom, bottom.Bottom()) // bottom refcount -> 3
	s.Ref()                                           // s: refcount 2

	s.Lookup(0, true) // s: resident 1
	require.Equal(t, 2, pm.Total()-pm.Free(), "bottom's page and the shadow's split page are both resident")

	s.Put() // s refcount 2->1 == resident(1): self-collects, then Puts both bottom refs
	require.Equal(t, 0, pm.Total()-pm.Free(), "the shadow's page and the bottom's page are both freed")
}
