// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGitRef = "4f1c2a9e8d7b6c5a4f3e"

type testStruct struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestDataCache() (*DataCache, *MemoryBackend, *clock) {
	m, c := newTestMemoryBackend()
	return NewDataCache(m, testGitRef, zerolog.Nop()), m, c
}

func TestDataCache_RoundTrip(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value interface{}
		dest  func() interface{}
	}{
		{
			name:  "map",
			value: map[string]interface{}{"some": "data"},
			dest:  func() interface{} { return &map[string]interface{}{} },
		},
		{
			name:  "struct",
			value: testStruct{Name: "HMP Hewell", Value: 42},
			dest:  func() interface{} { return &testStruct{} },
		},
		{
			name:  "slice",
			value: []string{"HEI", "BLI", "DHI"},
			dest:  func() interface{} { return &[]string{} },
		},
		{
			name:  "string",
			value: "plain",
			dest:  func() interface{} { return new(string) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestDataCache()

			require.NoError(t, c.Set(ctx, "key", tt.value, 10*time.Second))

			dest := tt.dest()
			found, err := c.Get(ctx, "key", dest)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, tt.value, deref(dest))
		})
	}
}

func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *map[string]interface{}:
		return *p
	case *testStruct:
		return *p
	case *[]string:
		return *p
	case *string:
		return *p
	}
	return nil
}

func TestDataCache_SetAndExpire(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestDataCache()

	require.NoError(t, c.Set(ctx, "key", map[string]string{"some": "data"}, 10*time.Second))
	got, found, err := Get[map[string]string](ctx, c, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"some": "data"}, got)

	require.NoError(t, c.Set(ctx, "key", map[string]string{"some": "data"}, -time.Second))
	got, found, err = Get[map[string]string](ctx, c, "key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestDataCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestDataCache()

	require.NoError(t, c.Set(ctx, "key", testStruct{Name: "a"}, time.Minute))
	clk.Advance(time.Minute)

	_, found, err := Get[testStruct](ctx, c, "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDataCache_KeyFormat(t *testing.T) {
	ctx := context.Background()
	c, m, _ := newTestDataCache()

	require.NoError(t, c.Set(ctx, "prisonNames", []string{"HEI"}, time.Minute))

	raw, found, err := m.Read(ctx, "dataCache_4f1c2a9:prisonNames")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `["HEI"]`, raw)
}

func TestDataCache_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryBackend()
	previousBuild := NewDataCache(shared, "1111111aaaa", zerolog.Nop())
	currentBuild := NewDataCache(shared, "2222222bbbb", zerolog.Nop())

	require.NoError(t, previousBuild.Set(ctx, "key", testStruct{Name: "old"}, time.Minute))

	_, found, err := Get[testStruct](ctx, currentBuild, "key")
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := Get[testStruct](ctx, previousBuild, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "old", got.Name)
}

func TestDataCache_CorruptPayloadIsMiss(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "not json"},
		{name: "incompatible shape", raw: `{"name": 12, "value": "twelve"}`},
		{name: "truncated", raw: `{"name": "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m, _ := newTestDataCache()
			require.NoError(t, m.Write(ctx, c.key("key"), tt.raw, time.Minute))

			_, found, err := Get[testStruct](ctx, c, "key")
			assert.NoError(t, err)
			assert.False(t, found)
		})
	}
}

type failingBackend struct {
	err error
}

func (f failingBackend) Write(context.Context, string, string, time.Duration) error { return f.err }

func (f failingBackend) Read(context.Context, string) (string, bool, error) { return "", false, f.err }

func (f failingBackend) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, f.err
}

func TestDataCache_BackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	backendErr := errors.New("cache: connect to redis at redis:6379: connection refused")
	c := NewDataCache(failingBackend{err: backendErr}, testGitRef, zerolog.Nop())

	err := c.Set(ctx, "key", "value", time.Minute)
	assert.ErrorIs(t, err, backendErr)

	_, found, err := Get[string](ctx, c, "key")
	assert.ErrorIs(t, err, backendErr)
	assert.False(t, found)
}

func TestDataCache_SetUnmarshalableValue(t *testing.T) {
	c, _, _ := newTestDataCache()
	err := c.Set(context.Background(), "key", make(chan int), time.Minute)
	assert.Error(t, err)
}

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestDataCache()

	var calls int
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"HEI", "BLI"}, nil
	}

	got, err := Memoize(ctx, c, "prisonNames", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"HEI", "BLI"}, got)

	got, err = Memoize(ctx, c, "prisonNames", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"HEI", "BLI"}, got)
	assert.Equal(t, 1, calls)

	clk.Advance(time.Hour)
	_, err = Memoize(ctx, c, "prisonNames", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoize_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestDataCache()
	fetchErr := errors.New("prison register returned 503")

	_, err := Memoize(ctx, c, "prisonNames", time.Hour, func(context.Context) ([]string, error) {
		return nil, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)

	_, found, err := Get[[]string](ctx, c, "prisonNames")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoize_CacheUnavailable(t *testing.T) {
	ctx := context.Background()
	c := NewDataCache(failingBackend{err: errors.New("connection refused")}, testGitRef, zerolog.Nop())

	got, err := Memoize(ctx, c, "prisonNames", time.Hour, func(context.Context) ([]string, error) {
		return []string{"HEI"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HEI"}, got)
}

func TestMemoize_ConcurrentMissesShareFetch(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestDataCache()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const callers = 5
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := Memoize(ctx, c, "key", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestMemoize_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c, _, _ := newTestDataCache()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "value", nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Memoize(firstCtx, c, "prisonNames", time.Minute, fetch)
		firstErr <- err
	}()
	<-started

	type result struct {
		value string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		v, err := Memoize(context.Background(), c, "prisonNames", time.Minute, fetch)
		second <- result{value: v, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	// the first caller goes away while the fetch is in flight
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "value", got.value)
	assert.Equal(t, int32(1), calls.Load())

	// the shared fetch still populated the cache
	cached, found, err := Get[string](context.Background(), c, "prisonNames")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", cached)
}
