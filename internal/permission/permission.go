// internal/permission/permission.go
package permission

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Capability is an operation a role may be granted on a module.
type Capability string

const (
	View      Capability = "VIEW"
	ViewAll   Capability = "VIEW_ALL"
	Create    Capability = "CREATE"
	Update    Capability = "UPDATE"
	Delete    Capability = "DELETE"
	Authorize Capability = "AUTHORIZE"
)

const allOperations = "*"

// Checker decides whether user holds capability on module.
type Checker interface {
	IsPermitted(ctx context.Context, user, module string, capability Capability) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, user, module string, capability Capability) (bool, error)

func (f CheckerFunc) IsPermitted(ctx context.Context, user, module string, capability Capability) (bool, error) {
	return f(ctx, user, module, capability)
}

// Require returns PERMISSION_DENIED unless user holds capability.
func Require(ctx context.Context, c Checker, user, module string, capability Capability) error {
	ok, err := c.IsPermitted(ctx, user, module, capability)
	if err != nil {
		return errors.NewStoreFailureError("check permission", err)
	}
	if !ok {
		return errors.NewPermissionDeniedError(user, string(capability))
	}
	return nil
}

// StoreChecker resolves grants through the user's account and role. Accounts
// in the super realm hold every capability. Grants are cached in Redis when a
// client is configured.
type StoreChecker struct {
	store  store.Store
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewStoreChecker creates a checker. rdb may be nil to disable caching.
func NewStoreChecker(s store.Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *StoreChecker {
	return &StoreChecker{
		store:  s,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "permission"}),
	}
}

func cacheKey(user, module string) string {
	return fmt.Sprintf("loan:perm:%s:%s", user, module)
}

func (c *StoreChecker) IsPermitted(ctx context.Context, user, module string, capability Capability) (bool, error) {
	if user == "" {
		return false, nil
	}
	ops, err := c.grants(ctx, user, module)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op == allOperations || op == string(capability) {
			return true, nil
		}
	}
	return false, nil
}

func (c *StoreChecker) grants(ctx context.Context, user, module string) ([]string, error) {
	if c.redis != nil {
		val, err := c.redis.Get(ctx, cacheKey(user, module)).Result()
		switch {
		case err == nil:
			var ops []string
			if json.Unmarshal([]byte(val), &ops) == nil {
				return ops, nil
			}
		case !stderrors.Is(err, redis.Nil):
			c.logger.Warn("permission cache read failed", map[string]interface{}{"user": user, "error": err.Error()})
		}
	}

	ops, err := c.load(ctx, user, module)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		data, _ := json.Marshal(ops)
		if err := c.redis.Set(ctx, cacheKey(user, module), data, c.ttl).Err(); err != nil {
			c.logger.Warn("permission cache write failed", map[string]interface{}{"user": user, "error": err.Error()})
		}
	}
	return ops, nil
}

func (c *StoreChecker) load(ctx context.Context, user, module string) ([]string, error) {
	account, err := store.GetAs[models.Account](ctx, c.store, store.KindAccount, store.Filter{"user": user})
	if stderrors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if account.Realm == models.RealmSuper {
		return []string{allOperations}, nil
	}
	if account.Role == "" {
		return []string{}, nil
	}

	role, err := store.GetAs[models.Role](ctx, c.store, store.KindRole, store.ByID(account.Role))
	if stderrors.Is(err, store.ErrNotFound) {
		c.logger.Warn("account references missing role", map[string]interface{}{"user": user, "role": account.Role})
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	ops := []string{}
	for _, p := range role.Permissions {
		if p.Module == module {
			ops = append(ops, p.Operations...)
		}
	}
	return ops, nil
}

// Invalidate drops cached grants for user on module.
func (c *StoreChecker) Invalidate(ctx context.Context, user, module string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, cacheKey(user, module)).Err()
}
