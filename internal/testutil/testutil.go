// Package testutil holds helpers shared by package tests: Redis discovery
// for the token store tests, metric recorders and fixture builders.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Cleanup(func())
	Skip(args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

const pingTimeout = 2 * time.Second

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// redisRequired turns a missing Redis into a failure instead of a skip.
func redisRequired() bool { return envBool("TEST_REQUIRE_REDIS") }

// FindTestRedis returns the first address with a live Redis. REDIS_ADDR wins
// over the local and compose defaults.
func FindTestRedis(t TestingTB) (string, bool) {
	t.Helper()

	candidates := []string{"localhost:6379", "redis:6379"}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if pingRedis(t, addr, 0) == nil {
			return addr, true
		}
	}
	return "", false
}

func pingRedis(t TestingTB, addr string, db int) error {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("close redis client: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("redis not reachable at %s: %v", addr, err)
		return err
	}
	return nil
}

// testDB reserves a database index in [1..15] through a lock key in DB 0, so
// packages running in parallel do not flush each other's tokens.
func testDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer meta.Close()

	for i := 1; i <= 15; i++ {
		lockKey := fmt.Sprintf("billing-krama:testutil:db:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		ok, err := meta.SetNX(ctx, lockKey, os.Getpid(), 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			c := redis.NewClient(&redis.Options{Addr: addr})
			defer c.Close()
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := c.Del(ctx, lockKey).Err(); err != nil {
				t.Logf("release %s: %v", lockKey, err)
			}
		})
		return i
	}
	return 1
}

// SetupTestRedis returns a client on an empty test database. The test is
// skipped when no Redis answers unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := FindTestRedis(t)
	if !ok {
		if redisRequired() {
			t.Fatal("redis not available for testing")
		}
		t.Skip("redis not available for testing")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: testDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis at %s: %v", addr, err)
	}
	return client
}
