package models

import (
	"log"

	"bitbucket.org/vmgroup/dealer_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&StockItem{}, &StockEventRecord{}, &DocItemMirror{},
		&Product{}, &Service{}, &Customer{},
		&User{}, &MessageToken{},
		&Notification{}, &NotificationRead{},
		&ReviewItem{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
