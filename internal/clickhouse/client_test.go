package clickhouse

import (
	"strings"
	"testing"
)

func TestSchema_KeepsEveryRecord(t *testing.T) {
	if strings.Contains(schema, "Replacing") {
		t.Error("a replacing engine would collapse records the Postgres store keeps")
	}
	if !strings.Contains(schema, "ORDER BY (band, level, timestamp, id)") {
		t.Error("record id must be part of the sort key")
	}
}
