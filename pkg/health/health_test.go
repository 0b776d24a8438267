package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-assist/backend/pkg/logger"
)

func TestCheckerBeforeFirstRun(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })

	status := c.GetStatus()
	require.Contains(t, status, "database")
	assert.Equal(t, StatusDown, status["database"].Status)
	assert.False(t, c.IsSystemHealthy())
}

func TestCheckerCriticalDown(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return errors.New("connection refused") })
	c.RegisterGeminiKeyCheck(func(context.Context) bool { return true })

	c.RunChecks(context.Background())

	status := c.GetStatus()
	assert.Equal(t, StatusDown, status["database"].Status)
	assert.Equal(t, "connection refused", status["database"].Error)
	assert.True(t, status["database"].Critical)
	assert.Equal(t, StatusUp, status["gemini_api_key"].Status)
	assert.False(t, c.IsSystemHealthy())
}

func TestCheckerNonCriticalDegraded(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterGeminiKeyCheck(func(context.Context) bool { return false })
	c.RegisterRedisCheck(func(context.Context) error { return errors.New("dial tcp") })

	c.RunChecks(context.Background())

	status := c.GetStatus()
	assert.Equal(t, StatusUp, status["database"].Status)
	assert.Equal(t, StatusDegraded, status["gemini_api_key"].Status)
	assert.NotEmpty(t, status["gemini_api_key"].Error)
	assert.Equal(t, StatusDegraded, status["redis"].Status)
	assert.Equal(t, StatusUp, status["self"].Status)
	assert.True(t, c.IsSystemHealthy())
}

func TestCheckerRecovery(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	fail := true
	c.RegisterDatabaseCheck(func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	c.RunChecks(context.Background())
	assert.False(t, c.IsSystemHealthy())

	fail = false
	c.RunChecks(context.Background())
	assert.True(t, c.IsSystemHealthy())
	assert.Empty(t, c.GetStatus()["database"].Error)
}

func TestGetStatusReturnsCopies(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RunChecks(context.Background())

	status := c.GetStatus()
	status["self"].Status = StatusDown

	assert.Equal(t, StatusUp, c.GetStatus()["self"].Status)
}

func TestStartRunsImmediately(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Hour)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	assert.Eventually(t, c.IsSystemHealthy, time.Second, 10*time.Millisecond)
}
