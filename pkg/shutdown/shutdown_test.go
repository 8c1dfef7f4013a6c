package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	err    error
	called bool
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.called = true
	return f.err
}

func (f *fakeServer) Close() error {
	f.called = true
	return f.err
}

func TestShutdownRunsInReverseOrder(t *testing.T) {
	m := New(time.Second)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		m.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.Equal(t, 0, m.Shutdown())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdownContinuesPastFailures(t *testing.T) {
	m := New(time.Second)

	srv := &fakeServer{}
	m.Register("server", StopHTTPServer(srv))
	m.Register("broken", CloseResource(&fakeServer{err: errors.New("busy")}))

	assert.Equal(t, 1, m.Shutdown())
	assert.True(t, srv.called)
}

func TestTriggerClosesDone(t *testing.T) {
	m := New(time.Second)
	m.Trigger()
	m.Trigger()

	select {
	case <-m.Done():
	default:
		t.Fatal("Done() not closed after Trigger")
	}

	// Wait returns immediately once triggered
	m.Wait()
}

func TestWaitWithContextCancelled(t *testing.T) {
	m := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.WaitWithContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charon.sock")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	fn := RemoveFile(path)
	require.NoError(t, fn(context.Background()))
	require.NoError(t, fn(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
