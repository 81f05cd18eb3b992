// stock-import reads an inventory spreadsheet and feeds it through the same
// pipeline the front office uses: it publishes one import event plus the
// import-log marker that schedules the keyword recheck.
//
//	go run ./cmd/stock-import --file units.xlsx --branch 01 [--parts] [--doc-no IMP-001]
//
// Expected columns (first sheet, header row):
//
//	productCode | productName | model | productType | qty | vehicleNo | vehicleNoFull | peripheralNo | peripheralNoFull | remark
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func main() {
	file := flag.String("file", "", "Required: spreadsheet path (.xlsx)")
	branch := flag.String("branch", "", "Required: branch code")
	docNo := flag.String("doc-no", "", "Document number (generated when empty)")
	parts := flag.Bool("parts", false, "Import as parts instead of vehicles")
	flag.Parse()

	if strings.TrimSpace(*file) == "" || strings.TrimSpace(*branch) == "" {
		fmt.Fprintln(os.Stderr, "--file and --branch are required")
		os.Exit(1)
	}

	items, err := readLineItems(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read spreadsheet: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "spreadsheet has no line items")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	// When Redis is configured, refuse to race a concurrent import of the
	// same branch.
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry()
		if err := utils.BranchLock(context.Background(), *branch, "import", "stock-import", "main"); err != nil {
			fmt.Fprintf(os.Stderr, "another import for branch %s is in flight: %v\n", *branch, err)
			os.Exit(1)
		}
	}

	now := time.Now().UTC()
	batchNo := now.Format("20060102-150405")
	number := *docNo
	if number == "" {
		number = "IMP-" + batchNo
	}

	refType := models.StockReferenceTypeImportVehicles
	dataType := string(models.StockReferenceTypeImportVehicles)
	if *parts {
		refType = models.StockReferenceTypeImportParts
		dataType = string(models.StockReferenceTypeImportParts)
	}

	doc := models.ImportDoc{
		Id:         uuid.NewString(),
		DocNo:      number,
		BatchNo:    batchNo,
		BranchCode: *branch,
		CreatedBy:  "stock-import",
		CreatedAt:  &now,
		DocDate:    &now,
		Items:      items,
	}
	logDoc := models.ImportLogDoc{
		Id:        uuid.NewString(),
		DataType:  dataType,
		BatchNo:   batchNo,
		CreatedBy: "stock-import",
		CreatedAt: &now,
	}

	ctx := utils.SetUserNameInContext(context.Background(), "stock-import")
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.PublishToStock(ctx, tx, *branch, now, doc.Id, refType, doc, nil, models.PubSubMessageActionCreate); err != nil {
			return err
		}
		return models.PublishToStock(ctx, tx, *branch, now, logDoc.Id, models.StockReferenceTypeImportLog, logDoc, nil, models.PubSubMessageActionCreate)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to queue import events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("queued import %s (batch %s, %d lines) for branch %s\n", number, batchNo, len(items), *branch)
}

func readLineItems(path string) ([]models.DocLineItem, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var items []models.DocLineItem
	for _, row := range rows[1:] {
		code := cell(row, "productCode")
		if code == "" {
			continue
		}
		qty := 1
		if v := cell(row, "qty"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid qty %q for product %s", v, code)
			}
			qty = n
		}
		items = append(items, models.DocLineItem{
			ProductCode:      code,
			ProductName:      cell(row, "productName"),
			Model:            cell(row, "model"),
			ProductType:      cell(row, "productType"),
			Qty:              qty,
			VehicleNo:        models.SerialField(utils.NormalizeSerials(cell(row, "vehicleNo"))),
			VehicleNoFull:    models.SerialField(utils.NormalizeSerials(cell(row, "vehicleNoFull"))),
			PeripheralNo:     models.SerialField(utils.NormalizeSerials(cell(row, "peripheralNo"))),
			PeripheralNoFull: models.SerialField(utils.NormalizeSerials(cell(row, "peripheralNoFull"))),
			Remark:           cell(row, "remark"),
		})
	}
	return items, nil
}
