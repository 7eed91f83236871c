package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
	}{
		{"1.0.0", "1.1.0", true},
		{"v1.0.0", "v1.1.0", true},
		{"1.1.0", "1.0.0", false},
		{"1.0.0", "1.0.0", false},
		{"dev", "v9.9.9", false},
		{"", "v1.0.0", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewerVersion(tt.current, tt.latest),
			"current=%s latest=%s", tt.current, tt.latest)
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v1.2.3", formatVersion("v1.2.3"))
}

func TestUpdateCacheRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := readUpdateCache()
	require.Error(t, err, "no cache yet")

	want := &updateCache{LatestVersion: "v1.2.3", CheckedAt: time.Now()}
	require.NoError(t, writeUpdateCache(want))

	got, err := readUpdateCache()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", got.LatestVersion)
	assert.True(t, isCacheValid(got))
}

func TestIsCacheValid(t *testing.T) {
	assert.True(t, isCacheValid(&updateCache{CheckedAt: time.Now()}))
	assert.False(t, isCacheValid(&updateCache{CheckedAt: time.Now().Add(-25 * time.Hour)}))
}

func TestCheckForUpdateDisabled(t *testing.T) {
	t.Setenv("RP_NO_UPDATE_CHECK", "1")
	assert.Equal(t, "", checkForUpdate())
}
