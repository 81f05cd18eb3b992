package main

import (
	"context"
	"testing"

	"bitbucket.org/vmgroup/dealer_backend/utils"
)

func sessionCtx(userId int, province, branchCode string, isAdmin bool) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), userId)
	ctx = utils.SetProvinceInContext(ctx, province)
	ctx = utils.SetBranchCodeInContext(ctx, branchCode)
	ctx = utils.SetIsAdminInContext(ctx, isAdmin)
	return ctx
}

func TestResolveNotificationTargetOwnFeed(t *testing.T) {
	ctx := sessionCtx(7, "chiangmai", "01", false)

	userId, province, branchCode, err := resolveNotificationTarget(ctx, fetchNotificationsRequest{})
	if err != nil {
		t.Fatalf("resolveNotificationTarget: %v", err)
	}
	if userId != 7 || province != "chiangmai" || branchCode != "01" {
		t.Fatalf("own feed resolved to user=%d province=%q branch=%q", userId, province, branchCode)
	}

	// Naming yourself explicitly is still your own feed, no admin needed.
	userId, _, branchCode, err = resolveNotificationTarget(ctx, fetchNotificationsRequest{UserId: 7})
	if err != nil {
		t.Fatalf("self-referencing fetch: %v", err)
	}
	if userId != 7 || branchCode != "01" {
		t.Fatalf("self-referencing fetch resolved to user=%d branch=%q", userId, branchCode)
	}
}

func TestResolveNotificationTargetProvinceOverride(t *testing.T) {
	ctx := sessionCtx(7, "chiangmai", "01", false)

	_, province, _, err := resolveNotificationTarget(ctx, fetchNotificationsRequest{ProvinceId: "lamphun"})
	if err != nil {
		t.Fatalf("resolveNotificationTarget: %v", err)
	}
	if province != "lamphun" {
		t.Fatalf("province override ignored, got %q", province)
	}
}

func TestResolveNotificationTargetCrossUser(t *testing.T) {
	// Non-admin reading another user's feed is rejected.
	if _, _, _, err := resolveNotificationTarget(sessionCtx(7, "", "", false), fetchNotificationsRequest{UserId: 9}); err == nil {
		t.Fatalf("cross-user fetch must require admin")
	}

	// Admin gets the target user's feed, without the caller's branch filter.
	userId, _, branchCode, err := resolveNotificationTarget(sessionCtx(7, "", "01", true), fetchNotificationsRequest{UserId: 9})
	if err != nil {
		t.Fatalf("admin cross-user fetch: %v", err)
	}
	if userId != 9 {
		t.Fatalf("admin cross-user fetch resolved to user=%d", userId)
	}
	if branchCode != "" {
		t.Fatalf("caller's branch filter must not apply to another user's feed, got %q", branchCode)
	}
}

func TestResolveNotificationTargetNoSession(t *testing.T) {
	if _, _, _, err := resolveNotificationTarget(context.Background(), fetchNotificationsRequest{}); err == nil {
		t.Fatalf("missing session must be rejected")
	}
}
