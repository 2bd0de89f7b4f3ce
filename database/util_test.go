package database

import "testing"

func TestGenerateAdvisoryLockID(t *testing.T) {
	testcases := []struct {
		dbname     string
		additional []string
		expectedID int64
	}{
		{
			dbname:     "database_name",
			expectedID: 1764327054,
		},
		{
			dbname:     "database_name",
			additional: []string{"schema_name_1"},
			expectedID: 2453313553,
		},
		{
			dbname:     "database_name",
			additional: []string{"schema_name_2"},
			expectedID: 235207038,
		},
		{
			dbname:     "database_name",
			additional: []string{"schema_name_1", "schema_name_2"},
			expectedID: 3743845847,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.dbname, func(t *testing.T) {
			id, err := GenerateAdvisoryLockID(tc.dbname, tc.additional...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tc.expectedID {
				t.Errorf("GenerateAdvisoryLockID(%q, %v) = %d, want %d", tc.dbname, tc.additional, id, tc.expectedID)
			}
		})
	}
}

func TestGenerateAdvisoryLockIDDeterministic(t *testing.T) {
	id1, _ := GenerateAdvisoryLockID("same", "a", "b")
	id2, _ := GenerateAdvisoryLockID("same", "a", "b")
	if id1 != id2 {
		t.Errorf("expected deterministic output, got %d and %d", id1, id2)
	}
}
