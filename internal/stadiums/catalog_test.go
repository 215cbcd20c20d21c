package stadiums

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

func TestDefault_BuiltinOrder(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"jamsil", "daegu", "suwon", "incheon"}, c.IDs())
	assert.Equal(t, 4, c.Len())

	jamsil, ok := c.Get(DefaultStadium)
	require.True(t, ok)
	assert.Equal(t, "잠실야구장", jamsil.Name)
	assert.InDelta(t, 37.5122, jamsil.Lat, 1e-9)
	assert.InDelta(t, 127.0719, jamsil.Lon, 1e-9)
	assert.Equal(t, "kbo_jamsil_model.json", jamsil.ModelLocator)
}

func TestLookup_UnknownStadium(t *testing.T) {
	_, err := Default().Lookup("gocheok")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundStadium, appErr.Code)
	assert.Equal(t, "gocheok", appErr.Details["stadium"])
}

func TestAll_ReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "mutated"

	d, _ := c.Get(all[0].ID)
	assert.NotEqual(t, "mutated", d.Name)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty", nil},
		{"missing id", []Definition{{Name: "x", Lat: 1, Lon: 1}}},
		{"duplicate", []Definition{{ID: "a"}, {ID: "a"}}},
		{"latitude", []Definition{{ID: "a", Lat: 91}}},
		{"longitude", []Definition{{ID: "a", Lon: -181}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New([]Definition{{ID: "gocheok", Lat: 37.4982, Lon: 126.8672, Dome: true}})
	require.NoError(t, err)

	d, _ := c.Get("gocheok")
	assert.Equal(t, "kbo_gocheok_model.json", d.ModelLocator)
	assert.Equal(t, "gocheok", d.Name)
	assert.True(t, d.Dome)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stadiums.yaml")
	content := `stadiums:
  - id: incheon
    name: 인천SSG랜더스필드
    team: SSG
    lat: 37.4370
    lon: 126.6932
    model: s3://raincheck-models/kbo_incheon_model.json.zst
    capacity: 23000
  - id: jamsil
    name: 잠실야구장
    team: LG/두산
    lat: 37.5122
    lon: 127.0719
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"incheon", "jamsil"}, c.IDs())
	inc, _ := c.Get("incheon")
	assert.Equal(t, "s3://raincheck-models/kbo_incheon_model.json.zst", inc.ModelLocator)
	assert.Equal(t, 23000, inc.Capacity)
	jam, _ := c.Get("jamsil")
	assert.Equal(t, "kbo_jamsil_model.json", jam.ModelLocator)
}

func TestLoad_EmptyPathUsesBuiltin(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().IDs(), c.IDs())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
