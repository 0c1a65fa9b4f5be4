package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	draftKeyPrefix  = "draft:"
	userDraftsKey   = "user:%s:drafts"
	objectKeyPrefix = "draftobj:"
)

type redisRepo struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewRedis(client redis.Cmdable, ttl time.Duration) Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisRepo{client: client, ttl: ttl, now: time.Now}
}

func (r *redisRepo) Save(ctx context.Context, draft *Draft) error {
	if err := validate(draft); err != nil {
		return err
	}

	now := r.now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	indexKey := fmt.Sprintf(userDraftsKey, draft.UserID)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, draftKeyPrefix+draft.ID, string(data), r.ttl)
	pipe.SAdd(ctx, indexKey, draft.ID)
	pipe.Expire(ctx, indexKey, r.ttl)
	// Object references expire with the draft.
	for _, key := range draft.State.ObjectKeys() {
		pipe.Set(ctx, objectKeyPrefix+key, draft.ID, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save draft in Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) Get(ctx context.Context, id string) (*Draft, error) {
	if id == "" {
		return nil, errors.New("draft ID cannot be empty")
	}
	data, err := r.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get draft from Redis: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// ListByUser drops ids of drafts that expired since they were indexed.
func (r *redisRepo) ListByUser(ctx context.Context, userID string) ([]*Draft, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	indexKey := fmt.Sprintf(userDraftsKey, userID)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user drafts from Redis: %w", err)
	}
	sort.Strings(ids)

	found := make([]*Draft, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			draft, err := r.Get(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get draft %s: %w", id, err)
			}
			found[i] = draft
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Draft, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, d := range found {
		if d == nil {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, d)
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune user drafts: %w", err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *redisRepo) Delete(ctx context.Context, id string) error {
	draft, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, draftKeyPrefix+id)
	pipe.SRem(ctx, fmt.Sprintf(userDraftsKey, draft.UserID), id)
	if refs := objectRefKeys(draft.State.ObjectKeys()); len(refs) > 0 {
		pipe.Del(ctx, refs...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete draft from Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) ReferencedObjects(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(keys) == 0 {
		return found, nil
	}
	vals, err := r.client.MGet(ctx, objectRefKeys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get draft object references: %w", err)
	}
	for i, v := range vals {
		if v != nil {
			found[keys[i]] = true
		}
	}
	return found, nil
}

func objectRefKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = objectKeyPrefix + k
	}
	return out
}
