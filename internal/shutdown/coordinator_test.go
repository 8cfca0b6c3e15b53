// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunIsLastInFirstOutAndOnce(t *testing.T) {
	c := NewCoordinator()
	var order []string
	for _, name := range []string{"hub", "driver", "server"} {
		c.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"server", "driver", "hub"}, order)
	assert.True(t, c.Done())

	require.NoError(t, c.Run(context.Background()))
	assert.Len(t, order, 3)

	c.Register("late", func(context.Context) error {
		order = append(order, "late")
		return nil
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Len(t, order, 3)
}

func TestRunContinuesPastFailures(t *testing.T) {
	c := NewCoordinator()
	ran := 0
	c.Closer("journal", closerFunc(func() error { ran++; return nil }))
	c.Closer("registry", closerFunc(func() error { ran++; return errors.New("busy") }))
	c.Closer("nil", nil)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry: busy")
	assert.Equal(t, 2, ran)
}

func TestRunSplitsDeadline(t *testing.T) {
	c := NewCoordinator()
	var budgets []time.Duration
	for i := 0; i < 2; i++ {
		c.Register("hook", func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			budgets = append(budgets, time.Until(deadline))
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	require.Len(t, budgets, 2)
	assert.LessOrEqual(t, budgets[0], time.Second, "first hook gets half of the budget")
	assert.Greater(t, budgets[1], budgets[0]/2)
}
