package blockingpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasksAndReturnsResults(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	var counter int64
	ch := p.Go(func() error {
		atomic.AddInt64(&counter, 1)
		return nil
	})

	require.NoError(t, <-ch)
	assert.EqualValues(t, 1, atomic.LoadInt64(&counter))
}

func TestPool_PropagatesTaskError(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	boom := errors.New("boom")
	ch := p.Go(func() error { return boom })
	assert.ErrorIs(t, <-ch, boom)
}

func TestPool_DefaultsWhenNonPositive(t *testing.T) {
	p := New(0, 0)
	defer p.Close()

	ch := p.Go(func() error { return nil })
	require.NoError(t, <-ch)
}
