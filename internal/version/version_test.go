package version

import (
	"runtime/debug"
	"testing"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	original := readBuildInfo
	t.Cleanup(func() { readBuildInfo = original })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
}

func TestBuildVersion(t *testing.T) {
	tests := []struct {
		name   string
		linked string
		info   *debug.BuildInfo
		ok     bool
		want   string
	}{
		{"release tag", "", &debug.BuildInfo{Main: debug.Module{Version: "v0.1.0"}}, true, "v0.1.0"},
		{"devel", "", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true, "dev"},
		{"unavailable", "", nil, false, "dev"},
		{"ldflags wins", "v2.0.0", &debug.BuildInfo{Main: debug.Module{Version: "v0.1.0"}}, true, "v2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubBuildInfo(t, tt.info, tt.ok)
			orig := Version
			Version = tt.linked
			defer func() { Version = orig }()

			if got := BuildVersion(); got != tt.want {
				t.Errorf("BuildVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRevision(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
	}}, true)
	if got := Revision(); got != "0123456789ab-dirty" {
		t.Errorf("Revision() = %q", got)
	}
}

func TestRevision_Unavailable(t *testing.T) {
	stubBuildInfo(t, nil, false)
	if got := Revision(); got != "" {
		t.Errorf("Revision() = %q, want empty", got)
	}
}
