package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// backupTables are the collections included in the daily export. The outbox
// and idempotency tables are operational state and stay out.
var backupTables = []string{
	"stock_items",
	"doc_item_mirrors",
	"review_items",
	"products",
	"services",
	"customers",
	"users",
	"message_tokens",
	"notifications",
	"notification_reads",
}

// RunDailyBackup exports every backup table as gzipped JSON to the backup
// bucket once a day. The hour is configurable so the run lands in the quiet
// window of the dealership's timezone.
func RunDailyBackup(ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	hour := 20 // 03:00 ICT
	if v := strings.TrimSpace(os.Getenv("BACKUP_HOUR_UTC")); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &hour); err != nil || hour < 0 || hour > 23 {
			hour = 20
		}
	}

	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		logger.WithFields(logrus.Fields{
			"next_run_utc":   next.Format(time.RFC3339),
			"next_run_local": utils.ConvertToLocalTime(next, "Asia/Bangkok").Format(time.RFC3339),
		}).Info("next backup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		if err := BackupDatabase(ctx, db, logger); err != nil {
			config.LogError(logger, "backup.go", "RunDailyBackup", "BackupDatabase", nil, err)
			continue
		}
		if err := pruneExpiredBackup(ctx, logger); err != nil {
			config.LogError(logger, "backup.go", "RunDailyBackup", "pruneExpiredBackup", nil, err)
		}
	}
}

// BackupDatabase snapshots each table into one object under a date prefix.
// A marker object makes the run idempotent so concurrent service replicas
// don't export the same day twice.
func BackupDatabase(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	prefix := "backups/" + time.Now().UTC().Format("2006-01-02")

	marker := prefix + "/.complete"
	done, err := utils.ObjectExistsInGCS(ctx, marker)
	if err != nil {
		config.LogError(logger, "backup.go", "BackupDatabase", "Check marker", marker, err)
		return err
	}
	if done {
		logger.WithFields(logrus.Fields{"prefix": prefix}).Info("backup already completed for today; skipping")
		return nil
	}

	for _, table := range backupTables {
		var rows []map[string]interface{}
		if err := db.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
			config.LogError(logger, "backup.go", "BackupDatabase", "Read table", table, err)
			return err
		}

		data, err := marshalGzippedJSON(rows)
		if err != nil {
			config.LogError(logger, "backup.go", "BackupDatabase", "Marshal table", table, err)
			return err
		}

		objectName := fmt.Sprintf("%s/%s.json.gz", prefix, table)
		if err := utils.UploadBytesToGCS(ctx, objectName, data, "application/gzip"); err != nil {
			config.LogError(logger, "backup.go", "BackupDatabase", "Upload table", objectName, err)
			return err
		}

		logger.WithFields(logrus.Fields{
			"table":  table,
			"object": objectName,
			"rows":   len(rows),
		}).Info("backup uploaded")
	}

	if err := utils.UploadBytesToGCS(ctx, marker, []byte(time.Now().UTC().Format(time.RFC3339)), "text/plain"); err != nil {
		config.LogError(logger, "backup.go", "BackupDatabase", "Write marker", marker, err)
		return err
	}
	return nil
}

// pruneExpiredBackup removes the export that aged past the retention window.
// Object names are deterministic per day, so no bucket listing is needed.
func pruneExpiredBackup(ctx context.Context, logger *logrus.Logger) error {
	retentionDays := 35
	if v := strings.TrimSpace(os.Getenv("BACKUP_RETENTION_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retentionDays = n
		}
	}

	expired := time.Now().UTC().AddDate(0, 0, -retentionDays)
	prefix := "backups/" + expired.Format("2006-01-02")
	for _, table := range backupTables {
		objectName := fmt.Sprintf("%s/%s.json.gz", prefix, table)
		if err := utils.DeleteObjectFromGCS(ctx, objectName); err != nil {
			return err
		}
	}
	if err := utils.DeleteObjectFromGCS(ctx, prefix+"/.complete"); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"prefix": prefix}).Info("expired backup pruned")
	return nil
}

func marshalGzippedJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
