package source_test

import (
	"testing"

	"github.com/schemarun/schemarun/source"
)

func TestParseName(t *testing.T) {
	cases := []struct {
		name        string
		wantVersion uint64
		wantDesc    string
		wantDir     source.Direction
		wantErr     bool
	}{
		{name: "1_create_users.up.sql", wantVersion: 1, wantDesc: "create users", wantDir: source.Up},
		{name: "1_create_users.down.sql", wantVersion: 1, wantDesc: "create users", wantDir: source.Down},
		{name: "20240102150405_add_index.UP.sql", wantVersion: 20240102150405, wantDesc: "add index", wantDir: source.Up},
		{name: "README.md", wantErr: true},
		{name: "create_users.up.sql", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, desc, dir, err := source.ParseName(tc.name)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != tc.wantVersion || desc != tc.wantDesc || dir != tc.wantDir {
				t.Errorf("ParseName(%q) = (%d, %q, %q), want (%d, %q, %q)",
					tc.name, v, desc, dir, tc.wantVersion, tc.wantDesc, tc.wantDir)
			}
		})
	}
}
