package stub

import (
	"context"
	"strings"
	"testing"

	dt "github.com/schemarun/schemarun/database/testing"
)

func Test(t *testing.T) {
	s := &Stub{}
	d, err := s.Open(context.Background(), "stub://")
	if err != nil {
		t.Fatal(err)
	}
	dt.Test(t, d, []byte("/* foobar migration */"))
}

func TestExecuteScriptRecordsSequence(t *testing.T) {
	ctx := context.Background()
	s := &Stub{}
	d, err := s.Open(ctx, "stub://")
	if err != nil {
		t.Fatal(err)
	}
	stub := d.(*Stub)

	if err := stub.ExecuteScript(ctx, strings.NewReader("CREATE 1")); err != nil {
		t.Fatal(err)
	}
	if err := stub.ExecuteScript(ctx, strings.NewReader("CREATE 2")); err != nil {
		t.Fatal(err)
	}
	if !stub.EqualSequence([]string{"CREATE 1", "CREATE 2"}) {
		t.Errorf("unexpected sequence: %v", stub.Sequence)
	}

	if err := stub.Drop(ctx); err != nil {
		t.Fatal(err)
	}
	if !stub.EqualSequence([]string{"CREATE 1", "CREATE 2", DropMarker}) {
		t.Errorf("unexpected sequence after drop: %v", stub.Sequence)
	}
}
