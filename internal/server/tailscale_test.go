// ABOUTME: Tests for tailnet state directory and auth key resolution
// ABOUTME: Covers configured values, the TS_AUTHKEY fallback and a missing key

package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/notes/ts")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/notes/ts", dir)

	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "coven-notes", "tailscale"), dir)
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        string
		want       string
		wantErr    bool
	}{
		{name: "configured wins", configured: "tskey-config", env: "tskey-env", want: "tskey-config"},
		{name: "env fallback", env: "tskey-env", want: "tskey-env"},
		{name: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TS_AUTHKEY", tt.env)

			got, err := resolveTailscaleAuthKey(tt.configured)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "TS_AUTHKEY")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
