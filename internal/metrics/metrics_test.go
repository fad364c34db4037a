package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_CatalogInfoKeepsOneSeries(t *testing.T) {
	c := NewCollector(30 * time.Second)
	assert.Equal(t, 30.0, testutil.ToFloat64(c.TickInterval))

	c.SetCatalog("2025-fall.1", "embedded")
	c.SetCatalog("2025-fall.2", "postgres")
	assert.Equal(t, 1, testutil.CollectAndCount(c.CatalogInfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CatalogInfo.WithLabelValues("2025-fall.2", "postgres")))
}

func TestCollector_PublisherAdapter(t *testing.T) {
	c := NewCollector(time.Second)
	c.NATSSetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
	c.NATSSetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.NATSConnected))

	c.BoardPublishedInc()
	c.BoardPublishErrInc()
	c.VehicleReceivedInc()
	c.VehicleReceivedInc()
	c.VehicleDecodeErrInc()
	c.PublishObserve(time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BoardsPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BoardPublishErrs))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.VehiclesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.VehicleDecodeErr))
	assert.Equal(t, 1, testutil.CollectAndCount(c.PublishDuration))
}
