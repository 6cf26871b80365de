// Command schemactl is an operator CLI for the tenant clone registry: it
// resolves or force-refreshes a tenant's descriptor (its record plus the
// deployments the pool manager may dial) against the RBAC seed file a
// running server shares, without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/platformbuilds/tenant-gateway-core/internal/registry"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
)

func main() {
	seedPath := flag.String("seed-file", os.Getenv("TENANTGW_SEED_FILE"), "path to the RBAC seed snapshot to read tenants from")
	tenantID := flag.String("tenant", "", "tenant ID to resolve or refresh")
	refresh := flag.Bool("refresh", false, "force-refresh the tenant's cached descriptor instead of reading the cache")
	flag.Parse()

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "usage: schemactl -seed-file <path> -tenant <id> [-refresh]")
		os.Exit(2)
	}
	if *seedPath == "" {
		fmt.Fprintln(os.Stderr, "schemactl: -seed-file is required (or set TENANTGW_SEED_FILE)")
		os.Exit(2)
	}

	repoInst := rbac.NewMemoryRBACRepository()
	data, err := os.ReadFile(*seedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemactl: failed to read seed file: %v\n", err)
		os.Exit(1)
	}
	var snap rbac.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "schemactl: failed to parse seed file: %v\n", err)
		os.Exit(1)
	}
	repoInst.Restore(&snap)

	reg := registry.New(repoInst)
	ctx := context.Background()

	var descriptor *registry.Descriptor
	if *refresh {
		descriptor, err = reg.Refresh(ctx, *tenantID)
	} else {
		descriptor, err = reg.Resolve(ctx, *tenantID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemactl: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemactl: failed to marshal descriptor: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
