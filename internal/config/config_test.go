package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiref/internal/domain/reference"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)

	schemes, err := f.ResolveSchemes()
	require.NoError(t, err)
	assert.Equal(t, reference.DefaultSchemes(), schemes)

	cfg, err := f.ServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, reference.DefaultConfig(), cfg)
}

func TestParse_EmptyDocument(t *testing.T) {
	f, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, f.Schemes)
}

func TestLoad_OverridesAndAdditions(t *testing.T) {
	doc := `
season: "2627"
allocation:
  max_retries: 8
  reservation_ttl: 2h
  retry_backoff: 5ms
  max_count: 50
schemes:
  - name: externa
    separator: "-"
  - name: pallet
    kind: FLAT
    prefix: P
    pad_width: 6
    table: pallets
    column: code
`
	path := filepath.Join(t.TempDir(), "schemes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	f, err := Load(path)
	require.NoError(t, err)

	schemes, err := f.ResolveSchemes()
	require.NoError(t, err)
	require.Len(t, schemes, 3)

	assert.Equal(t, reference.AsliScheme(), schemes[0])

	externa := schemes[1]
	assert.Equal(t, "-", externa.Separator)
	assert.Equal(t, "2627", externa.Season)
	assert.Equal(t, "ref_cliente", externa.Source.Column)

	pallet := schemes[2]
	assert.Equal(t, reference.KindFlat, pallet.Kind)
	assert.Equal(t, "P", pallet.Prefix)
	assert.Equal(t, 6, pallet.PadWidth)
	assert.Equal(t, reference.DefaultPageSize, pallet.PageSize)
	assert.Equal(t, reference.Source{Table: "pallets", Column: "code"}, pallet.Source)

	cfg, err := f.ServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, reference.Config{
		MaxRetries:     8,
		ReservationTTL: 2 * time.Hour,
		RetryBackoff:   5 * time.Millisecond,
		MaxCount:       50,
	}, cfg)
}

func TestSchemes_SchemeSeasonWins(t *testing.T) {
	f, err := Parse([]byte(`
season: "2627"
schemes:
  - name: externa
    season: "2728"
`))
	require.NoError(t, err)
	schemes, err := f.ResolveSchemes()
	require.NoError(t, err)
	assert.Equal(t, "2728", schemes[1].Season)
}

func TestSchemes_Invalid(t *testing.T) {
	tests := map[string]string{
		"unsafe table":  "schemes:\n  - name: x\n    kind: flat\n    prefix: X\n    pad_width: 3\n    table: \"t; drop\"\n    column: c\n",
		"unknown kind":  "schemes:\n  - name: asli\n    kind: sparse\n",
		"missing name":  "schemes:\n  - kind: flat\n",
		"negative page": "schemes:\n  - name: asli\n    page_size: -1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(doc))
			require.NoError(t, err)
			_, err = f.ResolveSchemes()
			assert.Error(t, err)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("schemes:\n  - name: asli\n    widht: 4\n"))
	assert.Error(t, err)
}

func TestServiceConfig_InvalidDurations(t *testing.T) {
	f, err := Parse([]byte("allocation:\n  reservation_ttl: soon\n"))
	require.NoError(t, err)
	_, err = f.ServiceConfig()
	assert.Error(t, err)

	f, err = Parse([]byte("allocation:\n  max_retries: -2\n"))
	require.NoError(t, err)
	_, err = f.ServiceConfig()
	assert.Error(t, err)
}

func TestLoad_ExampleFileMatchesDefaults(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "config", "schemes.example.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Schemes, 2)

	schemes, err := f.ResolveSchemes()
	require.NoError(t, err)
	assert.Equal(t, reference.DefaultSchemes(), schemes)

	cfg, err := f.ServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, reference.DefaultConfig(), cfg)
}
