package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Slot names of the local mirror. Each holds a flat JSON array.
const (
	SlotRequests  = "leave_requests"
	SlotBalances  = "leave_balances"
	SlotEmployees = "employees"
)

// SlotStore persists named JSON blobs.
type SlotStore interface {
	// Load returns nil, nil when the slot was never written.
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// =============================================================================
// REDIS
// =============================================================================

const slotKeyPrefix = "leave:mirror:"

// RedisSlots keeps each slot under one redis key.
type RedisSlots struct {
	rdb goredis.Cmdable
}

func NewRedisSlots(rdb goredis.Cmdable) *RedisSlots {
	return &RedisSlots{rdb: rdb}
}

// DialRedis connects and pings, like every other redis client in the stack.
func DialRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	if logger != nil {
		logger.Info("redis connected", zap.String("addr", addr))
	}
	return rdb, nil
}

func (r *RedisSlots) Load(ctx context.Context, name string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, slotKeyPrefix+name).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", name, err)
	}
	return b, nil
}

func (r *RedisSlots) Save(ctx context.Context, name string, data []byte) error {
	if err := r.rdb.Set(ctx, slotKeyPrefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// FILES
// =============================================================================

// FileSlots keeps each slot in <dir>/<name>.json.
type FileSlots struct {
	dir string
}

func NewFileSlots(dir string) (*FileSlots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &FileSlots{dir: dir}, nil
}

func (f *FileSlots) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileSlots) Load(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", name, err)
	}
	return b, nil
}

// Save writes to a temp file and renames it over the slot.
func (f *FileSlots) Save(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	return nil
}
