package workflow_test

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// End-to-end reconciliation over a real MySQL: import three FIFO units of one
// product, reserve one by serial, then verify exclusivity and history.
func TestImportThenBookingReconciliation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "dealer_test")
	t.Setenv("STOCK_UNMATCHED_POLICY", "error")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	logger := logrus.New()

	now := time.Now().UTC()
	importDoc := models.ImportDoc{
		Id:         "imp-1",
		DocNo:      "IMP-001",
		BatchNo:    "B-20260101",
		BranchCode: "01",
		CreatedBy:  "clerk",
		DocDate:    &now,
		Items: []models.DocLineItem{
			{
				ProductCode: "2-ABC",
				ProductName: "Wave 110i",
				Model:       "Wave",
				Qty:         3,
				VehicleNo:   models.SerialField{"NV-001", "NV-002", "NV-003"},
			},
		},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessImportVehiclesWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeImportVehicles, "imp-1", "01", models.PubSubMessageActionCreate, importDoc, nil))
	})
	if err != nil {
		t.Fatalf("import workflow: %v", err)
	}

	var units []models.StockItem
	if err := db.Where("import_doc_id = ?", "imp-1").Order("id").Find(&units).Error; err != nil {
		t.Fatalf("fetch units: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	for _, u := range units {
		if !u.IsUsed {
			t.Fatalf("product code 2-ABC must mark units used")
		}
		if u.IsFIFO {
			t.Fatalf("serialised unit %s must not be FIFO", u.VehicleNo)
		}
		if len(u.Transactions) != 1 || u.Transactions[0].Type != models.StockTransactionTypeImport {
			t.Fatalf("unit %s history: %+v", u.VehicleNo, u.Transactions)
		}
		if len(u.VehicleNoPartial) == 0 {
			t.Fatalf("unit %s missing search keywords", u.VehicleNo)
		}
	}

	bookingDoc := models.BookingDoc{
		Id:           "bk-1",
		DocNo:        "BK-001",
		BranchCode:   "01",
		CustomerName: "Somsak",
		CreatedBy:    "sale",
		DocDate:      &now,
		Items: []models.DocLineItem{
			{ProductCode: "2-ABC", Qty: 1, VehicleNo: models.SerialField{"NV-002"}},
		},
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessBookingWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeBooking, "bk-1", "01", models.PubSubMessageActionCreate, bookingDoc, nil))
	})
	if err != nil {
		t.Fatalf("booking workflow: %v", err)
	}

	var reservedCount int64
	if err := db.Model(&models.StockItem{}).Where("reserved IS NOT NULL").Count(&reservedCount).Error; err != nil {
		t.Fatalf("count reserved: %v", err)
	}
	if reservedCount != 1 {
		t.Fatalf("expected exactly one reserved unit, got %d", reservedCount)
	}

	var booked models.StockItem
	if err := db.Where("vehicle_no = ?", "NV-002").First(&booked).Error; err != nil {
		t.Fatalf("fetch booked unit: %v", err)
	}
	if booked.Reserved == nil || booked.Reserved.DocId != "bk-1" || booked.Reserved.Customer != "Somsak" {
		t.Fatalf("reserved disposition: %+v", booked.Reserved)
	}
	if len(booked.Transactions) != 2 || booked.Transactions[1].Type != models.StockTransactionTypeReserve {
		t.Fatalf("booked unit history: %+v", booked.Transactions)
	}

	// A second booking of the same serial finds no open unit. With the
	// unmatched policy set to error, the transaction must fail.
	secondBooking := models.BookingDoc{
		Id:         "bk-2",
		DocNo:      "BK-002",
		BranchCode: "01",
		CreatedBy:  "sale",
		DocDate:    &now,
		Items: []models.DocLineItem{
			{ProductCode: "2-ABC", Qty: 1, VehicleNo: models.SerialField{"NV-002"}},
		},
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessBookingWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeBooking, "bk-2", "01", models.PubSubMessageActionCreate, secondBooking, nil))
	})
	if err == nil {
		t.Fatalf("double booking of the same serial must fail under error policy")
	}
}

// FIFO fallback: a booking without a serial claims the oldest open unit of
// the product code.
func TestBookingFifoFallbackClaimsOldest(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "dealer_test")
	t.Setenv("STOCK_UNMATCHED_POLICY", "error")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	logger := logrus.New()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, docDate := range []time.Time{older, newer} {
		d := docDate
		doc := models.ImportDoc{
			Id:         fmt.Sprintf("imp-fifo-%d", i+1),
			DocNo:      fmt.Sprintf("IMP-10%d", i+1),
			BatchNo:    "B-FIFO",
			BranchCode: "01",
			CreatedBy:  "clerk",
			DocDate:    &d,
			Items: []models.DocLineItem{
				{ProductCode: "1-OIL", ProductName: "Engine Oil", Qty: 1},
			},
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return workflow.ProcessImportPartsWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeImportParts, doc.Id, "01", models.PubSubMessageActionCreate, doc, nil))
		})
		if err != nil {
			t.Fatalf("import %d: %v", i+1, err)
		}
	}

	booking := models.BookingDoc{
		Id:         "bk-fifo",
		DocNo:      "BK-100",
		BranchCode: "01",
		CreatedBy:  "sale",
		Items: []models.DocLineItem{
			{ProductCode: "1-OIL", Qty: 1},
		},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessBookingWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeBooking, "bk-fifo", "01", models.PubSubMessageActionCreate, booking, nil))
	})
	if err != nil {
		t.Fatalf("booking workflow: %v", err)
	}

	var claimed models.StockItem
	if err := db.Where("reserved IS NOT NULL").First(&claimed).Error; err != nil {
		t.Fatalf("fetch claimed unit: %v", err)
	}
	if claimed.ImportDocId != "imp-fifo-1" {
		t.Fatalf("FIFO must claim the oldest unit, claimed %s", claimed.ImportDocId)
	}
}

// Operators sometimes key the unabridged serial into the vehicleNo field.
// The short-form lookup misses and the full-form fallback must claim the
// right unit.
func TestBookingMatchesFullSerialFallback(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "dealer_test")
	t.Setenv("STOCK_UNMATCHED_POLICY", "error")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	logger := logrus.New()

	now := time.Now().UTC()
	importDoc := models.ImportDoc{
		Id:         "imp-full",
		DocNo:      "IMP-200",
		BatchNo:    "B-FULL",
		BranchCode: "01",
		CreatedBy:  "clerk",
		DocDate:    &now,
		Items: []models.DocLineItem{
			{
				ProductCode:   "1-XYZ",
				ProductName:   "PCX 160",
				Model:         "PCX",
				Qty:           2,
				VehicleNo:     models.SerialField{"NV-004", "NV-005"},
				VehicleNoFull: models.SerialField{"NV-000004", "NV-000005"},
			},
		},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessImportVehiclesWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeImportVehicles, "imp-full", "01", models.PubSubMessageActionCreate, importDoc, nil))
	})
	if err != nil {
		t.Fatalf("import workflow: %v", err)
	}

	// Booked by the full serial, not the short one stored in vehicle_no.
	booking := models.BookingDoc{
		Id:         "bk-full",
		DocNo:      "BK-200",
		BranchCode: "01",
		CreatedBy:  "sale",
		DocDate:    &now,
		Items: []models.DocLineItem{
			{ProductCode: "1-XYZ", Qty: 1, VehicleNo: models.SerialField{"NV-000004"}},
		},
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return workflow.ProcessBookingWorkflow(tx, logger, stockMsg(t, models.StockReferenceTypeBooking, "bk-full", "01", models.PubSubMessageActionCreate, booking, nil))
	})
	if err != nil {
		t.Fatalf("booking workflow: %v", err)
	}

	var claimed models.StockItem
	if err := db.Where("reserved IS NOT NULL").First(&claimed).Error; err != nil {
		t.Fatalf("fetch claimed unit: %v", err)
	}
	if claimed.VehicleNo != "NV-004" || claimed.VehicleNoFull != "NV-000004" {
		t.Fatalf("full-serial fallback claimed the wrong unit: %s / %s", claimed.VehicleNo, claimed.VehicleNoFull)
	}
	if claimed.Reserved == nil || claimed.Reserved.DocId != "bk-full" {
		t.Fatalf("reserved disposition: %+v", claimed.Reserved)
	}

	var reservedCount int64
	if err := db.Model(&models.StockItem{}).Where("reserved IS NOT NULL").Count(&reservedCount).Error; err != nil {
		t.Fatalf("count reserved: %v", err)
	}
	if reservedCount != 1 {
		t.Fatalf("expected exactly one reserved unit, got %d", reservedCount)
	}
}

func stockMsg(t *testing.T, refType models.StockReferenceType, refId, branch string, action models.PubSubMessageAction, newObj, oldObj interface{}) config.StockMessage {
	t.Helper()
	newRaw, err := json.Marshal(newObj)
	if err != nil {
		t.Fatalf("marshal new obj: %v", err)
	}
	var oldRaw []byte
	if oldObj != nil {
		oldRaw, err = json.Marshal(oldObj)
		if err != nil {
			t.Fatalf("marshal old obj: %v", err)
		}
	}
	return config.StockMessage{
		ID:            int(time.Now().UnixNano() % 1_000_000),
		BranchCode:    branch,
		DocDateTime:   time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: string(refType),
		Action:        string(action),
		OldObj:        oldRaw,
		NewObj:        newRaw,
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("dealer-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=dealer_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
