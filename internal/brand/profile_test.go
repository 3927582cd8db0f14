package brand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, "ワークス-S", p.BusinessName)
	assert.Equal(t, 3, p.PostCount)
	assert.Len(t, p.PriceTiers, 2)
}

func TestParse_EmptyYieldsDefault(t *testing.T) {
	p, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParse_PartialOverride(t *testing.T) {
	p, err := Parse([]byte(`
service_area: 長野県中信エリア
price_tiers:
  - name: 家庭用ノーマル
    yen: 9500
`))
	require.NoError(t, err)

	assert.Equal(t, "長野県中信エリア", p.ServiceArea)
	assert.Equal(t, []PriceTier{{Name: "家庭用ノーマル", Yen: 9500}}, p.PriceTiers)
	assert.Equal(t, Default().Proprietor, p.Proprietor)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("bussiness_name: typo\n"))
	assert.Error(t, err)
}

func TestParse_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero posts", "post_count: 0\n"},
		{"too many posts", "post_count: 11\n"},
		{"blank business", "business_name: \"\"\n"},
		{"free price", "price_tiers:\n  - name: 無料\n    yen: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	path := filepath.Join(t.TempDir(), "brand.yaml")
	require.NoError(t, os.WriteFile(path, []byte("post_count: 5\n"), 0o600))

	p, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, p.PostCount)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_ParsesBack(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "business_name: ワークス-S")

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}
