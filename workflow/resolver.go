package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DispositionAxis names the stock item column a movement wants to set. The
// resolver only returns items where that column is still NULL.
type DispositionAxis string

const (
	AxisReserved   DispositionAxis = "reserved"
	AxisSold       DispositionAxis = "sold"
	AxisTransfer   DispositionAxis = "transfer"
	AxisExported   DispositionAxis = "exported"
	AxisDecal      DispositionAxis = "decal"
	AxisDecalTaken DispositionAxis = "decal_taken"
)

var validAxes = map[DispositionAxis]bool{
	AxisReserved: true, AxisSold: true, AxisTransfer: true,
	AxisExported: true, AxisDecal: true, AxisDecalTaken: true,
}

type ResolveOptions struct {
	// Axis that must still be NULL for a candidate to be eligible. Empty
	// means no disposition filter (decal-taken checks decal instead).
	Axis DispositionAxis
	// BranchCode filters candidates to the document's origin branch when
	// non-empty (transfer and export flows).
	BranchCode string
	// Limit caps how many FIFO units one line may claim. Serial lookups
	// ignore it. Zero means 1.
	Limit int
}

// ResolveStockItems finds the stock items a line item refers to, in priority
// order: exact short serial, then full serial, then FIFO by stripped product
// code. Rows come back locked FOR UPDATE, so the caller must run inside a
// transaction; the lock plus the axis-NULL filter closes the double-claim
// race between concurrent handlers.
//
// Zero matches is not an error here. The caller applies the unmatched policy.
func ResolveStockItems(tx *gorm.DB, line models.DocLineItem, opt ResolveOptions) ([]models.StockItem, error) {
	if opt.Axis != "" && !validAxes[opt.Axis] {
		return nil, fmt.Errorf("invalid disposition axis %q", opt.Axis)
	}

	serials := utils.NormalizeSerials(append(line.VehicleNo, line.PeripheralNo...)...)
	fullSerials := utils.NormalizeSerials(append(line.VehicleNoFull, line.PeripheralNoFull...)...)

	if len(serials) > 0 || len(fullSerials) > 0 {
		lookup := serials
		if len(lookup) == 0 {
			lookup = fullSerials
		}
		items, err := findBySerial(tx, lookup, false, opt)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			// Operators sometimes key in the unabridged serial.
			fallback := fullSerials
			if len(fallback) == 0 {
				fallback = serials
			}
			items, err = findBySerial(tx, fallback, true, opt)
			if err != nil {
				return nil, err
			}
		}
		return items, nil
	}

	return findByFIFO(tx, line, opt)
}

func findBySerial(tx *gorm.DB, serials []string, fullForm bool, opt ResolveOptions) ([]models.StockItem, error) {
	var items []models.StockItem
	q := tx.Model(&models.StockItem{})
	if fullForm {
		q = q.Where("vehicle_no_full IN ? OR peripheral_no_full IN ?", serials, serials)
	} else {
		q = q.Where("vehicle_no IN ? OR peripheral_no IN ?", serials, serials)
	}
	q = applyEligibility(q, opt)
	err := q.Order("imported_at ASC, id ASC").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&items).Error
	return items, err
}

func findByFIFO(tx *gorm.DB, line models.DocLineItem, opt ResolveOptions) ([]models.StockItem, error) {
	pCode := utils.StripNonAlnum(line.ProductCode)
	if pCode == "" {
		return nil, nil
	}
	limit := opt.Limit
	if limit <= 0 {
		limit = 1
	}

	var items []models.StockItem
	q := tx.Model(&models.StockItem{}).
		Where("product_p_code = ? AND is_fifo = 1", pCode)
	q = applyEligibility(q, opt)
	// Oldest eligible unit first.
	err := q.Order("imported_at ASC, id ASC").
		Limit(limit).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&items).Error
	return items, err
}

func applyEligibility(q *gorm.DB, opt ResolveOptions) *gorm.DB {
	if opt.Axis != "" {
		q = q.Where(fmt.Sprintf("%s IS NULL", opt.Axis))
	}
	if opt.BranchCode != "" {
		q = q.Where("branch_code = ?", opt.BranchCode)
	}
	return q
}

// ErrUnmatchedMovement is returned under the error policy so the message is
// redelivered instead of lost.
var ErrUnmatchedMovement = errors.New("movement matched no open stock item")

// handleUnmatched applies the configured policy for a line that resolved to
// zero stock items. The original upstream behavior was a silent skip; the
// policy makes that explicit and reviewable.
func handleUnmatched(ctx context.Context, tx *gorm.DB, refType models.StockReferenceType, docId, docNo, branchCode string, line models.DocLineItem, reason string) error {
	logger := config.GetLogger()

	switch config.UnmatchedSerialPolicy() {
	case config.UnmatchedPolicyError:
		config.LogError(logger, "Resolver.go", "handleUnmatched", reason, line, ErrUnmatchedMovement)
		return ErrUnmatchedMovement
	case config.UnmatchedPolicySkip:
		config.LogError(logger, "Resolver.go", "handleUnmatched", "skipped: "+reason, line, ErrUnmatchedMovement)
		return nil
	default: // review
		serials := utils.NormalizeSerials(append(append(append(line.VehicleNo, line.VehicleNoFull...), line.PeripheralNo...), line.PeripheralNoFull...)...)
		item := models.ReviewItem{
			ReferenceType: refType,
			DocId:         docId,
			DocNo:         docNo,
			BranchCode:    branchCode,
			ProductCode:   line.ProductCode,
			Serials:       models.StringList(serials),
			Reason:        reason,
		}
		if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
			config.LogError(logger, "Resolver.go", "handleUnmatched", "CreateReviewItem", line, err)
			return err
		}
		return nil
	}
}

// dispositionOf builds the sub-record a handler patches onto an axis.
func dispositionOf(by string, at time.Time, docId, docNo, branchCode, customer string) *models.Disposition {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &models.Disposition{
		By:         by,
		At:         at,
		DocId:      docId,
		DocNo:      docNo,
		BranchCode: branchCode,
		Customer:   customer,
	}
}
