package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo returns a ClientInfo describing this process and role.
// role examples: "api", "backfill"
func BuildClientInfo(name, role string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	if name == "" {
		name = "gitrank"
	}
	type kv = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []kv{
		{Name: name, Version: safe(role)},
		{Name: "go", Version: safe(runtime.Version())},
		{Name: "host", Version: safe(host)},
	}}
}

func safe(s string) string { return strings.TrimSpace(s) }
