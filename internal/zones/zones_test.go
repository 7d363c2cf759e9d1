package zones

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"screening-map/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"zona_id": 12.0, "zone_name": "Collique"}, "geometry": null},
    {"type": "Feature", "properties": {"zona_id": 13.7, "zone_name": "  El Progreso "}, "geometry": null},
    {"type": "Feature", "properties": {"zona_id": "14", "zone_name": "Santa Luzmila"}, "geometry": null},
    {"type": "Feature", "id": 15.2, "properties": {"zone_name": "Tahuantinsuyo"}, "geometry": null},
    {"type": "Feature", "properties": {"zone_name": "No Id"}, "geometry": null},
    {"type": "Feature", "properties": {"zona_id": 12.9, "zone_name": "Duplicate"}, "geometry": null}
  ]
}`

func TestParseFloorsZoneIDs(t *testing.T) {
	ix, skipped, err := Parse([]byte(sampleGeoJSON), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []int64{12, 13, 14, 15}, ix.IDs())
	assert.Equal(t, "Collique", ix.Name(12))
	assert.Equal(t, "El Progreso", ix.Name(13))
	assert.Equal(t, "Santa Luzmila", ix.Name(14))
	assert.Equal(t, "Tahuantinsuyo", ix.Name(15))
}

func TestParseSingleFeatureAndCustomProperties(t *testing.T) {
	doc := `{"type":"Feature","properties":{"ZID":3.5,"NAME":"Zona 3"}}`
	ix, _, err := Parse([]byte(doc), ParseOptions{IDProperty: "ZID", NameProperty: "NAME"})
	require.NoError(t, err)
	assert.Equal(t, "Zona 3", ix.Name(3))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, _, err := Parse([]byte(`{not json`), ParseOptions{})
	assert.Error(t, err)

	_, _, err = Parse([]byte(`{"type":"Polygon","coordinates":[]}`), ParseOptions{})
	assert.ErrorIs(t, err, ErrNotGeoJSON)
}

func TestIndexNameFallsBack(t *testing.T) {
	var nilIndex *Index
	assert.Equal(t, Unknown, nilIndex.Name(1))
	assert.Equal(t, Unknown, Empty().Name(1))
	assert.Equal(t, Unknown, NewIndex(map[int64]string{1: ""}).Name(1))
	assert.Equal(t, "Ate", NewIndex(map[int64]string{1: "Ate"}).Name(1))
}

func TestNewIndexCopiesInput(t *testing.T) {
	m := map[int64]string{1: "Ate"}
	ix := NewIndex(m)
	m[1] = "Changed"
	assert.Equal(t, "Ate", ix.Name(1))
}

type countingSource struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (s *countingSource) ReadZones(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

func TestResolverLoadsOnce(t *testing.T) {
	src := &countingSource{data: []byte(sampleGeoJSON)}
	r := NewResolver(src, ParseOptions{}, logger.Discard())

	first := r.Load(context.Background())
	second := r.Load(context.Background())
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	r.Reset()
	third := r.Load(context.Background())
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolverDegradesToEmptyIndex(t *testing.T) {
	tests := []struct {
		name string
		src  *countingSource
	}{
		{"fetch failure", &countingSource{err: errors.New("connection refused")}},
		{"parse failure", &countingSource{data: []byte("<html>")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.src, ParseOptions{}, logger.Discard())
			ix := r.Load(context.Background())
			require.NotNil(t, ix)
			assert.Equal(t, 0, ix.Len())
			assert.Equal(t, Unknown, ix.Name(12))

			// 失败不缓存，再次加载会重试
			r.Load(context.Background())
			assert.Equal(t, int32(2), tt.src.calls.Load())
		})
	}
}

func TestFileSource(t *testing.T) {
	p := filepath.Join(t.TempDir(), "zones.geojson")
	require.NoError(t, os.WriteFile(p, []byte(sampleGeoJSON), 0o644))
	ix := NewResolver(FileSource{Path: p}, ParseOptions{}, logger.Discard()).Load(context.Background())
	assert.Equal(t, 4, ix.Len())

	missing := NewResolver(FileSource{Path: filepath.Join(t.TempDir(), "nope")}, ParseOptions{}, logger.Discard())
	assert.Equal(t, 0, missing.Load(context.Background()).Len())
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/residential_zones.geojson" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleGeoJSON))
	}))
	defer srv.Close()

	b, err := HTTPSource{URL: srv.URL + "/data/residential_zones.geojson"}.ReadZones(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, sampleGeoJSON, string(b))

	_, err = HTTPSource{URL: srv.URL + "/missing"}.ReadZones(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleGeoJSON))
	}))
	defer srv.Close()

	size := int64(len(sampleGeoJSON))
	_, err := HTTPSource{URL: srv.URL, MaxBytes: size - 1}.ReadZones(context.Background())
	require.ErrorIs(t, err, ErrGeometryTooLarge)

	b, err := HTTPSource{URL: srv.URL, MaxBytes: size}.ReadZones(context.Background())
	require.NoError(t, err)
	assert.Len(t, b, int(size))

	r := NewResolver(HTTPSource{URL: srv.URL, MaxBytes: 16}, ParseOptions{}, logger.Discard())
	assert.Equal(t, 0, r.Load(context.Background()).Len())
}

func TestCachedSourceWithoutRedisPassesThrough(t *testing.T) {
	inner := &countingSource{data: []byte(sampleGeoJSON)}
	s := CachedSource{Inner: inner}
	_, err := s.ReadZones(context.Background())
	require.NoError(t, err)
	_, err = s.ReadZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestPalette(t *testing.T) {
	p := NewPalette([]int64{30, 10, 20, 10}, []string{"red", "blue"})
	assert.Equal(t, "red", p.Color(10))
	assert.Equal(t, "blue", p.Color(20))
	assert.Equal(t, "red", p.Color(30))
	// 未登记的区：按编号取模
	assert.Equal(t, "blue", p.Color(7))
	assert.Equal(t, "blue", p.Color(-7))

	again := NewPalette([]int64{20, 30, 10}, []string{"red", "blue"})
	for _, id := range []int64{10, 20, 30} {
		assert.Equal(t, p.Color(id), again.Color(id))
	}
}
