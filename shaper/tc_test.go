package shaper

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logutil "bwgovernor/logging"
)

// fakeRunner 记录命令行，并按子命令 (del/add) 返回预设的错误
type fakeRunner struct {
	cmds   []string
	delErr error
	addErr error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.cmds = append(f.cmds, name+" "+strings.Join(args, " "))
	switch args[1] {
	case "del":
		return f.delErr
	case "add":
		return f.addErr
	}
	return nil
}

func newTestTC(r Runner) *TC {
	return &TC{Binary: "tc", Runner: r, Logger: logutil.NewTestLogger()}
}

func TestTCApplyCommands(t *testing.T) {
	r := &fakeRunner{}
	require.NoError(t, newTestTC(r).Apply(context.Background(), "eth0", 512))

	want := []string{
		"tc qdisc del root dev eth0",
		"tc qdisc add dev eth0 root tbf rate 512kbit burst 512kbit latency 1ms",
	}
	if diff := cmp.Diff(want, r.cmds); diff != "" {
		t.Errorf("Unexpected commands (-want +got): %s", diff)
	}
}

func TestTCApplyTwiceIsSafe(t *testing.T) {
	// 第二次删除时已有规则，第一次删除时没有规则 (非零退出)，两者都不应报错
	r := &fakeRunner{delErr: &exec.ExitError{}}
	tc := newTestTC(r)
	require.NoError(t, tc.Apply(context.Background(), "eth0", 1024))
	r.delErr = nil
	require.NoError(t, tc.Apply(context.Background(), "eth0", 1024))
	assert.Len(t, r.cmds, 4)
	assert.Equal(t, r.cmds[1], r.cmds[3])
}

func TestTCApplyErrors(t *testing.T) {
	tests := []struct {
		name            string
		runner          *fakeRunner
		wantInvocation  bool
		wantInstallFail bool
	}{
		{
			name:   "removal non-zero is tolerated",
			runner: &fakeRunner{delErr: &exec.ExitError{}},
		},
		{
			name:            "install non-zero is surfaced",
			runner:          &fakeRunner{addErr: &exec.ExitError{}},
			wantInstallFail: true,
		},
		{
			name:           "removal not invocable is fatal",
			runner:         &fakeRunner{delErr: exec.ErrNotFound},
			wantInvocation: true,
		},
		{
			name:           "install not invocable is fatal",
			runner:         &fakeRunner{addErr: errors.New("fork/exec: permission denied")},
			wantInvocation: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := newTestTC(test.runner).Apply(context.Background(), "ppp0", 64)
			if !test.wantInvocation && !test.wantInstallFail {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, test.wantInvocation, errors.Is(err, ErrInvocation))
			assert.Equal(t, test.wantInstallFail, IsInstallFailure(err))
		})
	}
}

// ctxRunner 和 exec.Cmd.Start 一样：ctx 已取消时不执行命令
type ctxRunner struct {
	cmds []string
}

func (r *ctxRunner) Run(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.cmds = append(r.cmds, name+" "+strings.Join(args, " "))
	return nil
}

func TestTCApplyCompletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &ctxRunner{}
	require.NoError(t, newTestTC(r).Apply(ctx, "eth0", 2048))
	assert.Equal(t, []string{
		"tc qdisc del root dev eth0",
		"tc qdisc add dev eth0 root tbf rate 2048kbit burst 2048kbit latency 1ms",
	}, r.cmds)

	if _, err := exec.LookPath("true"); err == nil {
		assert.NoError(t, NewTC("true", logutil.NewTestLogger()).Apply(ctx, "eth0", 2048))
	}
}

func TestTCApplyDoesNotInstallAfterFatalRemoval(t *testing.T) {
	r := &fakeRunner{delErr: exec.ErrNotFound}
	_ = newTestTC(r).Apply(context.Background(), "eth0", 8)
	assert.Len(t, r.cmds, 1)
}

func TestExecRunnerClassification(t *testing.T) {
	ctx := context.Background()

	missing := NewTC("/nonexistent/bin/tc", logutil.NewTestLogger())
	assert.ErrorIs(t, missing.Apply(ctx, "eth0", 1), ErrInvocation)

	if _, err := exec.LookPath("false"); err == nil {
		failing := NewTC("false", logutil.NewTestLogger())
		assert.True(t, IsInstallFailure(failing.Apply(ctx, "eth0", 1)))
	}
	if _, err := exec.LookPath("true"); err == nil {
		ok := NewTC("true", logutil.NewTestLogger())
		assert.NoError(t, ok.Apply(ctx, "eth0", 1))
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Apply(context.Background(), "eth0", 2))
	require.NoError(t, r.Apply(context.Background(), "eth0", 4))
	assert.Equal(t, []Call{{"eth0", 2}, {"eth0", 4}}, r.Calls())
}
