package push

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Audience selects the device tokens a notification fans out to. Empty fields
// do not filter. The "users" and "pending" groups additionally receive the
// province admins' devices, scoped to Province when set.
type Audience struct {
	GroupName  string
	Department string
	BranchCode string
	Province   string
	UserId     *int
}

// TokenStore resolves an audience to device tokens and prunes dead tokens.
type TokenStore interface {
	TokensForAudience(ctx context.Context, aud Audience) ([]string, error)
	PruneTokens(ctx context.Context, tokens []string) error
}

type gormTokenStore struct {
	db *gorm.DB
}

func NewGormTokenStore(db *gorm.DB) TokenStore {
	return &gormTokenStore{db: db}
}

func (s *gormTokenStore) TokensForAudience(ctx context.Context, aud Audience) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.MessageToken{})
	if aud.UserId != nil {
		q = q.Where("user_id = ?", *aud.UserId)
	}
	if aud.GroupName != "" {
		q = q.Where("group_name = ?", aud.GroupName)
	}
	if aud.Department != "" {
		q = q.Where("department = ?", aud.Department)
	}
	if aud.BranchCode != "" {
		q = q.Where("branch_code = ?", aud.BranchCode)
	}
	if aud.Province != "" {
		q = q.Where("province = ?", aud.Province)
	}

	var tokens []string
	if err := q.Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}

	// Regular and not-yet-grouped users always reach their province admins.
	if aud.GroupName == models.GroupUsers || aud.GroupName == models.GroupPending {
		adminQ := s.db.WithContext(ctx).Model(&models.MessageToken{}).
			Where("role = ?", models.RoleProvinceAdmin)
		if aud.Province != "" {
			adminQ = adminQ.Where("province = ?", aud.Province)
		}
		var adminTokens []string
		if err := adminQ.Pluck("token", &adminTokens).Error; err != nil {
			return nil, err
		}
		tokens = append(tokens, adminTokens...)
	}

	return dedupeTokens(tokens), nil
}

func (s *gormTokenStore) PruneTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&models.MessageToken{}).Error
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DispatchResult summarises one fan-out.
type DispatchResult struct {
	Targets int `json:"targets"`
	Success int `json:"success"`
	Failure int `json:"failure"`
	Pruned  int `json:"pruned"`
}

// Dispatcher fans a notification out to an audience and reactively prunes
// tokens the provider reports dead.
type Dispatcher struct {
	Messenger Messenger
	Store     TokenStore
	Logger    *logrus.Logger
}

var (
	defaultDispatcher *Dispatcher
	dispatcherOnce    sync.Once
	dispatcherErr     error
)

// Default returns the process-wide dispatcher backed by FCM and the shared DB.
func Default(ctx context.Context, logger *logrus.Logger) (*Dispatcher, error) {
	dispatcherOnce.Do(func() {
		messenger, err := NewFCMMessenger(ctx)
		if err != nil {
			dispatcherErr = err
			return
		}
		defaultDispatcher = &Dispatcher{
			Messenger: messenger,
			Store:     NewGormTokenStore(config.GetDB()),
			Logger:    logger,
		}
	})
	return defaultDispatcher, dispatcherErr
}

// Dispatch sends one push to the audience. Token pruning runs in the
// background so a slow delete never blocks the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, aud Audience, title, body string, data map[string]string) (DispatchResult, error) {
	tokens, err := d.Store.TokensForAudience(ctx, aud)
	if err != nil {
		config.LogError(d.Logger, "dispatcher.go", "Dispatch", "TokensForAudience", aud, err)
		return DispatchResult{}, err
	}
	if len(tokens) == 0 {
		return DispatchResult{}, nil
	}

	success, failure, invalid, err := d.Messenger.SendMulticast(ctx, tokens, title, body, data)
	if err != nil {
		config.LogError(d.Logger, "dispatcher.go", "Dispatch", "SendMulticast", len(tokens), err)
		return DispatchResult{Targets: len(tokens), Success: success, Failure: failure}, err
	}

	if len(invalid) > 0 {
		go func(dead []string) {
			pruneCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := d.Store.PruneTokens(pruneCtx, dead); err != nil {
				config.LogError(d.Logger, "dispatcher.go", "Dispatch", "PruneTokens", len(dead), err)
			}
		}(invalid)
	}

	return DispatchResult{Targets: len(tokens), Success: success, Failure: failure, Pruned: len(invalid)}, nil
}
