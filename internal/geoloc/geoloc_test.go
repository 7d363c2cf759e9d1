package geoloc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lima = [2]float64{-12.05, -77.05}

func TestLocatorWithoutDatabase(t *testing.T) {
	l, err := Open("", lima)
	require.NoError(t, err)
	for _, ip := range []string{"8.8.8.8", "10.0.0.1", "not-an-ip", ""} {
		c, ok := l.Center(ip)
		assert.False(t, ok, ip)
		assert.Equal(t, lima, c, ip)
	}
	require.NoError(t, l.Close())
}

func TestNilLocator(t *testing.T) {
	var l *Locator
	_, ok := l.Center("8.8.8.8")
	assert.False(t, ok)
	assert.NoError(t, l.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"), lima)
	assert.Error(t, err)
}
