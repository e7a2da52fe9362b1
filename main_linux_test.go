//go:build linux

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bwgovernor/counter"
	logutil "bwgovernor/logging"
)

type failingSource struct{}

func (failingSource) Read(_ context.Context, iface string, c counter.Counter) (uint64, error) {
	return 0, counter.ErrCounterRead
}

// setFlag 修改包级别的 flag 变量，测试结束后还原
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestRunReleasesSourceOnError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "eth0"), 0o755))
	setFlag(t, sysfsRoot, root)
	setFlag(t, ifaceName, "eth0")
	setFlag(t, resetOnExit, false)
	setFlag(t, dashboardOn, false)
	setFlag(t, metricsAddr, "")

	tests := []struct {
		name     string
		interval time.Duration
		wantErr  error
	}{
		{name: "invalid governor config", interval: 500 * time.Millisecond},
		{name: "reference snapshot fails", interval: time.Second, wantErr: counter.ErrCounterRead},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			setFlag(t, interval, test.interval)
			closed := 0
			open := func(iface string) (counter.Source, func(), error) {
				assert.Equal(t, "eth0", iface)
				return failingSource{}, func() { closed++ }, nil
			}

			err := run(logutil.NewTestLogger(), open)
			require.Error(t, err)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			}
			assert.Equal(t, 1, closed)
		})
	}
}

func TestRunSourceSetupError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "eth0"), 0o755))
	setFlag(t, sysfsRoot, root)
	setFlag(t, ifaceName, "eth0")

	boom := errors.New("attach failed")
	err := run(logutil.NewTestLogger(), func(string) (counter.Source, func(), error) {
		return nil, func() {}, boom
	})
	assert.ErrorIs(t, err, boom)
}
