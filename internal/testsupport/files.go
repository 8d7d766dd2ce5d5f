package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const recordHeader = "farm_id,cow_id,sample_date,protein_pct,parity\n"

// WriteFile creates path holding exactly size bytes of herd-record rows, the
// last row cut short when size demands it. Sizes below one write one byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(herdRecords(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func herdRecords(size int64) string {
	var b strings.Builder
	b.Grow(int(size) + 64)
	b.WriteString(recordHeader)
	for row := 1; int64(b.Len()) < size; row++ {
		fmt.Fprintf(&b, "F%03d,C%05d,2024-%02d-15,%.2f,%d\n", row%7, row, row%12+1, 3.0+float64(row%9)/10, row%5+1)
	}
	return b.String()[:size]
}
