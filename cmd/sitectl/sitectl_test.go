package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordsJSON = `[
  {"zona_id": 120, "screening_location_id": 101, "lat": -11.93, "lon": -77.05, "site_type": "Large Market", "screened_count": 10, "diagnosed_count": 2},
  {"zona_id": 120, "screening_location_id": 101, "lat": -11.93, "lon": -77.05, "site_type": "Large Market", "screened_count": 1005, "diagnosed_count": 1},
  {"zona_id": 305, "screening_location_id": 202, "lat": -11.85, "lon": -77.07, "site_type": "Community", "screened_count": 0, "diagnosed_count": 0}
]`

const zonesJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"zona_id": 120.0, "zone_name": "Collique"}, "geometry": null},
  {"type": "Feature", "properties": {"zona_id": 305, "zone_name": "Santa Luzmila"}, "geometry": null},
  {"type": "Feature", "properties": {"zone_name": "no id"}, "geometry": null}
]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestAggregateCommand(t *testing.T) {
	out, err := run(t, recordsJSON, "aggregate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"key":"101"`)
	assert.Contains(t, out, `"total_screened":1015`)
	assert.Equal(t, 1, strings.Count(out, `"key":"202"`))
}

func TestFilterCommand(t *testing.T) {
	zonesPath := writeFile(t, "zones.geojson", zonesJSON)

	out, err := run(t, recordsJSON, "filter", "-", "--zones", zonesPath, "--rank", "by_screened")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Collique")
	assert.Contains(t, lines[1], "1,015")
	assert.Contains(t, lines[2], "Santa Luzmila")
	assert.Equal(t, "2 of 2 sites", lines[3])

	out, err = run(t, recordsJSON, "filter", "-", "--yield-min", "0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 2 sites")
	assert.Contains(t, out, "Unknown")
}

func TestFilterCommandMissingZonesLogsAndFallsBack(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(recordsJSON))
	cmd.SetArgs([]string{"filter", "-", "--zones", filepath.Join(t.TempDir(), "missing.geojson")})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Unknown")
	assert.Contains(t, out.String(), "2 of 2 sites")
	assert.NotContains(t, out.String(), "zones_load_error")
	assert.Contains(t, errOut.String(), "zones_load_error")
}

func TestFilterCommandPreset(t *testing.T) {
	presets := writeFile(t, "presets.yaml", "presets:\n  - name: community\n    selected_types: [Community]\n")
	out, err := run(t, recordsJSON, "filter", "-", "--presets", presets, "--preset", "community")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 2 sites")

	_, err = run(t, recordsJSON, "filter", "-", "--presets", presets, "--preset", "nope")
	assert.Error(t, err)

	_, err = run(t, recordsJSON, "filter", "-", "--yield-min", "50", "--yield-max", "5")
	assert.Error(t, err)
}

func TestZonesCommand(t *testing.T) {
	out, err := run(t, zonesJSON, "zones", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Collique")
	assert.Contains(t, out, "2 zones (1 features skipped")
}

func TestImportAndTicketsUseSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))
	out, err := run(t, recordsJSON, "import", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 records, 0 stats")

	out, err = run(t, "", "tickets", "--batch", "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "LOCATION")
}
