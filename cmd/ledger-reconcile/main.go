package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/workflow"
)

func main() {
	orgIDs := flag.String("organization-id", "", "Optional: comma-separated organization ids. Defaults to every organization with products.")
	store := flag.Bool("store", false, "Store mismatches as reconciliation reports")
	failOnMismatch := flag.Bool("fail-on-mismatch", false, "Exit 2 when any mismatch is found")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	ctx := context.Background()

	var organizations []string
	for _, id := range strings.Split(*orgIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			organizations = append(organizations, id)
		}
	}
	if len(organizations) == 0 {
		var err error
		organizations, err = workflow.OrganizationsWithProducts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list organizations: %v\n", err)
			os.Exit(1)
		}
	}

	found, err := workflow.RunLedgerReconciliation(ctx, logger, organizations, *store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, orgId := range organizations {
		fmt.Printf("organization=%s mismatches=%d\n", orgId, found[orgId])
		total += found[orgId]
	}
	fmt.Printf("checked %d organizations, %d mismatches\n", len(organizations), total)
	if total > 0 && *failOnMismatch {
		os.Exit(2)
	}
}
