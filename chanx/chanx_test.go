package chanx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	ch := make(chan int, 1)

	err := Send(context.Background(), ch, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, <-ch)
}

func TestSend_ContextCanceled(t *testing.T) {
	ch := make(chan int)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Send(ctx, ch, 12)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecv(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "hello"

	v, ok, err := Recv(context.Background(), ch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	close(ch)
	_, ok, err = Recv(context.Background(), ch)
	require.NoError(t, err)
	assert.False(t, ok, "closed channel should report ok=false")
}

func TestRecv_Deadline(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := Recv(ctx, ch)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForward(t *testing.T) {
	ch := make(chan int, 5)
	for i := 1; i <= 5; i++ {
		ch <- i
	}
	close(ch)

	var got []int
	err := Forward(context.Background(), ch, func(v int) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestForward_StopsOnError(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)

	boom := errors.New("boom")
	calls := 0
	err := Forward(context.Background(), ch, func(v int) error {
		calls++
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestForward_Cancel(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Forward(ctx, ch, func(int) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after cancellation")
	}
}
