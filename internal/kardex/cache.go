package kardex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"toolrental/internal/logger"
)

// UnitCache keeps the unit to group reference in Redis so a slow catalog does
// not slow every write. A unit never changes group, so entries cannot go stale.
// Customer and user names are always looked up at record time.
// A nil *UnitCache, or one without a client, caches nothing.
type UnitCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewUnitCache(rdb *redis.Client, ttl time.Duration) *UnitCache {
	return &UnitCache{rdb: rdb, ttl: ttl}
}

func unitKey(unitID int64) string {
	return fmt.Sprintf("kardex:unit:%d", unitID)
}

func (c *UnitCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Entries are "<groupID>:<groupName>".
func (c *UnitCache) toolRef(ctx context.Context, unitID int64) (ToolRef, bool) {
	if !c.enabled() {
		return ToolRef{}, false
	}
	val, err := c.rdb.Get(ctx, unitKey(unitID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug("unit cache read failed", zap.Int64("tool_unit_id", unitID), zap.Error(err))
		}
		return ToolRef{}, false
	}
	rawID, name, found := strings.Cut(val, ":")
	groupID, err := strconv.ParseInt(rawID, 10, 64)
	if !found || err != nil {
		return ToolRef{}, false
	}
	return ToolRef{ToolGroupID: groupID, ToolGroupName: name}, true
}

func (c *UnitCache) setToolRef(ctx context.Context, unitID int64, ref ToolRef) {
	if !c.enabled() {
		return
	}
	val := fmt.Sprintf("%d:%s", ref.ToolGroupID, ref.ToolGroupName)
	if err := c.rdb.Set(ctx, unitKey(unitID), val, c.ttl).Err(); err != nil {
		logger.Debug("unit cache write failed", zap.Int64("tool_unit_id", unitID), zap.Error(err))
	}
}
