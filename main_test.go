package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stallingDB struct{}

func (stallingDB) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return nil
	}
}

func TestPingDatabaseIsBounded(t *testing.T) {
	start := time.Now()
	err := pingDatabase(context.Background(), stallingDB{}, 20*time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("ASKDB_TEST_PATH", "custom.yaml")
	assert.Equal(t, "custom.yaml", envOr("ASKDB_TEST_PATH", "config/config.yaml"))

	t.Setenv("ASKDB_TEST_PATH", "")
	assert.Equal(t, "config/config.yaml", envOr("ASKDB_TEST_PATH", "config/config.yaml"))
}
