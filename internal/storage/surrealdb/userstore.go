package surrealdb

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// UserStore keeps identity handles and per-user KV state.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

func (s *UserStore) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := surrealdb.Select[models.User](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("user", userID)
		}
		return nil, mapQueryErr("user.get", err)
	}
	if user == nil || user.ID == "" {
		return nil, models.NotFound("user", userID)
	}
	return user, nil
}

func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	if err := models.Validate(user); err != nil {
		return err
	}
	sql := `UPSERT $rid SET id = $id, email = $email, display_name = $display_name,
		first_seen = $first_seen, last_seen = $last_seen`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID("user", user.ID),
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"first_seen":   user.FirstSeen,
		"last_seen":    user.LastSeen,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("user.save", err)
	}
	return nil
}

func kvRecordID(userID, key string) string {
	return userID + "_" + key
}

func (s *UserStore) GetKV(ctx context.Context, userID, key string) (string, error) {
	kv, err := surrealdb.Select[models.UserKeyValue](ctx, s.db, surrealmodels.NewRecordID("user_kv", kvRecordID(userID, key)))
	if err != nil {
		if isNotFoundError(err) {
			return "", models.NotFound("user_kv", key)
		}
		return "", mapQueryErr("user.getkv", err)
	}
	if kv == nil || kv.Key == "" {
		return "", models.NotFound("user_kv", key)
	}
	return kv.Value, nil
}

func (s *UserStore) SetKV(ctx context.Context, userID, key, value string) error {
	sql := `UPSERT $rid SET user_id = $user_id, key = $key, value = $value, updated_at = $updated_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("user_kv", kvRecordID(userID, key)),
		"user_id":    userID,
		"key":        key,
		"value":      value,
		"updated_at": time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("user.setkv", err)
	}
	return nil
}

var _ interfaces.UserStore = (*UserStore)(nil)
