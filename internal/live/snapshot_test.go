package live

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-tracker/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, _, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	return c
}

func TestObserves_ByFeedNameAndFeedID(t *testing.T) {
	c := testCatalog(t)
	al, _ := c.Route("AL")
	qye, _ := c.Route("QYE")

	snap := &Snapshot{Vehicles: []Vehicle{
		{VehicleID: "bus-1", RouteID: "4501", RouteName: "Allston Loop"},
		{VehicleID: "bus-2", RouteID: "4512", RouteName: "Unlabelled"},
	}}
	assert.True(t, snap.Observes(c, al))
	assert.False(t, snap.Observes(c, qye))
	assert.True(t, snap.Observes(c, qye.BindFeedID("4512")))
}

func TestObserves_NilSnapshot(t *testing.T) {
	c := testCatalog(t)
	al, _ := c.Route("AL")
	var snap *Snapshot
	assert.False(t, snap.Observes(c, al))
	assert.Equal(t, 0, snap.Len())
	assert.False(t, (&Snapshot{}).Observes(c, al))
}

func TestBuffer_FreezeDropsStale(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	b := NewBuffer()
	b.Put(Vehicle{VehicleID: "b", SeenAt: now.Add(-30 * time.Second)})
	b.Put(Vehicle{VehicleID: "a", SeenAt: now.Add(-10 * time.Minute)})
	b.Put(Vehicle{VehicleID: "b", SeenAt: now.Add(-time.Hour), Lat: 1})

	snap := b.Freeze(now, 2*time.Minute)
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, "b", snap.Vehicles[0].VehicleID)
	assert.Zero(t, snap.Vehicles[0].Lat, "older position must not replace a newer one")

	assert.Len(t, b.Freeze(now, 2*time.Minute).Vehicles, 1)
}

func TestStore_SwapWhileReading(t *testing.T) {
	var st Store
	assert.Nil(t, st.Load())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if s := st.Load(); s != nil {
					_ = len(s.Vehicles)
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		st.Swap(&Snapshot{Vehicles: make([]Vehicle, i)})
	}
	wg.Wait()
	assert.Len(t, st.Load().Vehicles, 99)
}

func TestNearestStop(t *testing.T) {
	c := testCatalog(t)
	name, ok := NearestStop(c.Stops, 42.372850, -71.116970)
	require.True(t, ok)
	assert.Equal(t, "Widener Gate", name)

	_, ok = NearestStop(nil, 0, 0)
	assert.False(t, ok)
}
