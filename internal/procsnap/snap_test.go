package procsnap

import (
	"os"
	"testing"
)

func TestRowReturnsSelfProcess(t *testing.T) {
	tbl := NewTable()
	row, err := tbl.Row(os.Getpid())
	if err != nil {
		t.Fatalf("Row(self) returned error: %v", err)
	}
	if row.ParentPID != os.Getppid() {
		t.Errorf("ParentPID = %d, want %d", row.ParentPID, os.Getppid())
	}
	if row.ResidentBytes == 0 {
		t.Error("expected a non-zero resident size for a running process")
	}
}

func TestRowUnknownPidErrors(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Row(1 << 30); err == nil {
		t.Error("expected an error for an implausible pid")
	}
}
