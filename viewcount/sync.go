package viewcount

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/uow"
)

// Sync copies every cached counter into the posts table inside one unit of
// work. Keys whose suffix is not a post id are logged and skipped. Errors
// are logged, never returned; the next sweep retries.
func (c *Cache) Sync(ctx context.Context) {
	views, err := c.collect(ctx)
	if err != nil {
		c.metrics.Inc(boardauth.MetricViewSyncFailure)
		c.logger.Error("view sync scan failed", "error", err)
		return
	}
	if len(views) == 0 {
		return
	}

	err = c.uow.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return u.Posts.SyncViewsBatch(ctx, views)
	})
	if err != nil {
		c.metrics.Inc(boardauth.MetricViewSyncFailure)
		c.logger.Error("view sync write failed", "posts", len(views), "error", err)
		return
	}

	c.metrics.Inc(boardauth.MetricViewSyncRun)
	c.logger.Debug("view sync complete", "posts", len(views))
}

func (c *Cache) collect(ctx context.Context) (map[int64]int64, error) {
	pattern := c.cfg.KeyPrefix + "*"
	var (
		cursor uint64
		keys   []string
		ids    []int64
	)

	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, c.cfg.ScanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range batch {
			id, ok := c.postID(key)
			if !ok {
				c.logger.Warn("skipping malformed view key", "key", key)
				continue
			}
			keys = append(keys, key)
			ids = append(ids, id)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	views := make(map[int64]int64, len(keys))
	for start := 0; start < len(keys); start += c.cfg.MGetBatch {
		end := min(start+c.cfg.MGetBatch, len(keys))

		vals, err := c.rdb.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				// expired or deleted between SCAN and MGET
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				c.logger.Warn("skipping malformed view value", "key", keys[start+i], "value", s)
				continue
			}
			views[ids[start+i]] = n
		}
	}
	return views, nil
}

func (c *Cache) postID(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, c.cfg.KeyPrefix)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
