// seed-admin creates or updates the dealer console admin user.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "dealerAdmin"
	adminPassword = "D3@lerAdmin"
	adminName     = "Dealer Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:    adminUsername,
			DisplayName: adminName,
			Password:    hashedStr,
			GroupName:   models.GroupAdmin,
			IsActive:    true,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (group=admin)\n", adminUsername)
		printServiceToken(u.ID)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":     hashedStr,
		"display_name": adminName,
		"is_active":    true,
		"group_name":   models.GroupAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = config.RemoveRedisKey("User:" + adminUsername)
	fmt.Printf("Updated admin user: username=%q (group=admin)\n", adminUsername)
	printServiceToken(existing.ID)
}

// printServiceToken emits a bearer token for calling the admin-only ops
// endpoints before any interactive login exists.
func printServiceToken(userID int) {
	token, err := utils.JwtGenerate(userID, models.GroupAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate service token: %v\n", err)
		return
	}
	fmt.Printf("Service token (Authorization: Bearer ...):\n%s\n", token)
}
