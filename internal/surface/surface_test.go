package surface

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		appID   string
		paths   []string
		want    []string
		wantErr error
	}{
		{
			name:  "nil_paths_yields_base_surface",
			appID: "acme",
			paths: nil,
			want:  []string{"app://acme"},
		},
		{
			name:  "single_path",
			appID: "acme",
			paths: []string{"promos"},
			want:  []string{"app://acme/promos"},
		},
		{
			name:  "drops_empty_entries",
			appID: "acme",
			paths: []string{"promos/feed1", "", "  ", "promos/feed2"},
			want:  []string{"app://acme/promos/feed1", "app://acme/promos/feed2"},
		},
		{
			name:  "all_entries_dropped_yields_no_surfaces",
			appID: "acme",
			paths: []string{"", ""},
			want:  []string{},
		},
		{
			name:  "empty_list_yields_no_surfaces",
			appID: "acme",
			paths: []string{},
			want:  []string{},
		},
		{
			name:  "leading_slash_normalized",
			appID: "acme",
			paths: []string{"/promos"},
			want:  []string{"app://acme/promos"},
		},
		{
			name:    "empty_app_id_fails",
			appID:   "",
			paths:   []string{"promos"},
			wantErr: ErrNoApplicationID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.appID, tt.paths)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			uris := URIs(got)
			if !reflect.DeepEqual(uris, tt.want) {
				t.Errorf("surfaces = %v, want %v", uris, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	surfaces, err := Resolve("acme", []string{"promos"})
	if err != nil {
		t.Fatal(err)
	}
	if !Contains(surfaces, "app://acme/promos") {
		t.Error("expected resolved surface to match")
	}
	if Contains(surfaces, "app://acme") {
		t.Error("base surface was not requested, must not match")
	}
	if Contains(surfaces, "app://other/promos") {
		t.Error("foreign app surface must not match")
	}
}
