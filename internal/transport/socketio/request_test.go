package socketio

import (
	"testing"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		args     []any
		wantKey  artwork.Key
		wantPrio int
		wantOK   bool
	}{
		{
			name:     "full payload",
			args:     []any{map[string]interface{}{"artist": "Air", "album": "Moon Safari", "path": "Air/Moon Safari", "priority": float64(0)}},
			wantKey:  artwork.NewKey("Air", "Moon Safari", "Air/Moon Safari"),
			wantPrio: 0,
			wantOK:   true,
		},
		{
			name:     "default priority",
			args:     []any{map[string]interface{}{"album": "Moon Safari"}},
			wantKey:  artwork.NewKey("", "Moon Safari", ""),
			wantPrio: artwork.PriorityDefault,
			wantOK:   true,
		},
		{name: "no args", args: nil},
		{name: "not an object", args: []any{"Air"}},
		{name: "no identity", args: []any{map[string]interface{}{"path": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, prio, ok := parseRequest(tt.args)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if key != tt.wantKey || prio != tt.wantPrio {
				t.Errorf("got (%v, %d), want (%v, %d)", key, prio, tt.wantKey, tt.wantPrio)
			}
		})
	}
}

func TestNewAlbumArt(t *testing.T) {
	key := artwork.NewKey("Air", "Moon Safari", "Air/Moon Safari")

	found := newAlbumArt(key, "/covers/x.jpg")
	if !found.Found || found.URL == "" {
		t.Errorf("expected a found payload with URL, got %+v", found)
	}

	missing := newAlbumArt(key, "")
	if missing.Found || missing.URL != "" {
		t.Errorf("expected a missing payload without URL, got %+v", missing)
	}
}
