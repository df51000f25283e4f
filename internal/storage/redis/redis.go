// Package redis provides a Redis-backed storage.Repository.
//
// Each person is a JSON document under "person:<id>". Redis executes every
// command atomically, so per-key atomicity comes from choosing the right
// command rather than from client-side locking:
//
//	Create → SET key value NX   (only if absent)
//	Update → SET key value XX   (only if present)
//	Delete → DEL key            (reply counts removed keys)
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
)

const (
	keyPrefix = "person:"
	scanBatch = 100
)

// Options overrides pool and timeout settings parsed from the URL.
// Zero values keep go-redis defaults.
type Options struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis implements storage.Repository on a go-redis client.
type Redis struct {
	client *redis.Client
}

var _ storage.Repository = (*Redis)(nil)

// Connect parses url, applies opts, and pings the server.
func Connect(ctx context.Context, url string, opts Options) (*Redis, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.PoolSize > 0 {
		redisOpts.PoolSize = opts.PoolSize
	}
	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(client), nil
}

// New wraps an existing client. The caller keeps ownership of its lifecycle
// unless Close is called.
func New(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func key(id types.PersonID) string {
	return keyPrefix + id.String()
}

// Create writes the person with SET NX. A false reply means the key already
// existed: storage.ErrPersonAlreadyExists.
func (r *Redis) Create(ctx context.Context, person types.Person) (types.CreateResult, error) {
	value, err := json.Marshal(person)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("Create: marshal: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key(person.ID), value, 0).Result()
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("Create: setnx: %w", err)
	}
	if !ok {
		return types.CreateResult{}, storage.ErrPersonAlreadyExists
	}
	return types.CreateResult{ID: person.ID}, nil
}

// Read GETs and decodes one document. redis.Nil is reported as
// found == false.
func (r *Redis) Read(ctx context.Context, id types.PersonID) (types.Person, bool, error) {
	value, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Person{}, false, nil
	}
	if err != nil {
		return types.Person{}, false, fmt.Errorf("Read: get: %w", err)
	}

	var person types.Person
	if err := json.Unmarshal(value, &person); err != nil {
		return types.Person{}, false, fmt.Errorf("Read: unmarshal: %w", err)
	}
	return person, true, nil
}

// Update overwrites the document with SET XX, which only succeeds if the
// key exists. Otherwise it returns storage.ErrPersonDoesNotExist.
func (r *Redis) Update(ctx context.Context, person types.Person) (types.UpdateResult, error) {
	value, err := json.Marshal(person)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("Update: marshal: %w", err)
	}

	// SET ... XX replies nil (redis.Nil) when the key is missing.
	err = r.client.SetArgs(ctx, key(person.ID), value, redis.SetArgs{Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return types.UpdateResult{}, storage.ErrPersonDoesNotExist
	}
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("Update: set xx: %w", err)
	}
	return types.UpdateResult{Person: person}, nil
}

// Delete DELs the key; a zero count is storage.ErrPersonDoesNotExist.
func (r *Redis) Delete(ctx context.Context, id types.PersonID) (types.DeleteResult, error) {
	removed, err := r.client.Del(ctx, key(id)).Result()
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("Delete: del: %w", err)
	}
	if removed == 0 {
		return types.DeleteResult{}, storage.ErrPersonDoesNotExist
	}
	return types.DeleteResult{RemovedID: id}, nil
}

// All walks the keyspace with SCAN and fetches each batch with MGET. A key
// deleted between the two commands comes back nil and is skipped.
func (r *Redis) All(ctx context.Context) ([]types.Person, error) {
	persons := make([]types.Person, 0)

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := r.client.MGet(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("All: mget: %w", err)
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var person types.Person
			if err := json.Unmarshal([]byte(s), &person); err != nil {
				return fmt.Errorf("All: unmarshal: %w", err)
			}
			persons = append(persons, person)
		}
		batch = batch[:0]
		return nil
	}

	// SCAN may return a key more than once.
	seen := make(map[string]struct{})
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		batch = append(batch, k)
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("All: scan: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return persons, nil
}

// Ping checks the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client and its connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
