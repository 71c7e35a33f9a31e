// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Run(t *testing.T) {
	pool := NewWorkerPool(3)
	var count atomic.Int64

	err := pool.Run(context.Background(),
		func() error { count.Add(1); return nil },
		func() error { count.Add(1); return nil },
		func() error { count.Add(1); return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Load())
}

func TestWorkerPool_RunReturnsFirstError(t *testing.T) {
	pool := NewWorkerPool(1)
	boom := errors.New("boom")

	err := pool.Run(context.Background(),
		func() error { return nil },
		func() error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestWorkerPool_RunAllCollectsAllErrors(t *testing.T) {
	pool := NewWorkerPool(2)
	var count atomic.Int64

	errs := pool.RunAll(context.Background(),
		func() error { count.Add(1); return errors.New("first") },
		func() error { count.Add(1); return nil },
		func() error { count.Add(1); return errors.New("second") },
	)
	assert.Len(t, errs, 2)
	assert.Equal(t, int64(3), count.Load())
}

func TestWorkerPool_EmptyInput(t *testing.T) {
	pool := NewWorkerPool(0)
	require.NoError(t, pool.Run(context.Background()))
	assert.Nil(t, pool.RunAll(context.Background()))
}
