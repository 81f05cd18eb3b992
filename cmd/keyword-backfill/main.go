// keyword-backfill recomputes the precomputed search arrays across existing
// stock items. Use after a change to the keyword rules, or to repair batches
// whose delayed recheck never ran.
//
//	go run ./cmd/keyword-backfill [--batch <importBatchNo>] [--all] [--dry-run]
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
)

func main() {
	batchNo := flag.String("batch", "", "Only items of this import batch")
	all := flag.Bool("all", false, "Recompute every item, even ones that already have keywords")
	dryRun := flag.Bool("dry-run", false, "Report what would change without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	const pageSize = 500
	lastID := 0
	scanned, patched := 0, 0

	for {
		q := db.Where("id > ?", lastID).Order("id").Limit(pageSize)
		if *batchNo != "" {
			q = q.Where("import_batch_no = ?", *batchNo)
		}

		var items []models.StockItem
		if err := q.Find(&items).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to read stock items: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			break
		}

		for i := range items {
			lastID = items[i].ID
			scanned++
			if !*all && items[i].HasComputedKeywords() {
				continue
			}
			items[i].ComputeSearchFields()
			patched++
			if *dryRun {
				continue
			}
			err := db.Model(&items[i]).Updates(map[string]interface{}{
				"vehicle_no_lower":      items[i].VehicleNoLower,
				"vehicle_no_partial":    items[i].VehicleNoPartial,
				"peripheral_no_lower":   items[i].PeripheralNoLower,
				"peripheral_no_partial": items[i].PeripheralNoPartial,
				"model_partial":         items[i].ModelPartial,
				"product_name_partial":  items[i].ProductNamePartial,
			}).Error
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to update item %d: %v\n", items[i].ID, err)
				os.Exit(1)
			}
		}
	}

	verb := "patched"
	if *dryRun {
		verb = "would patch"
	}
	fmt.Printf("scanned %d items, %s %d\n", scanned, verb, patched)
}
