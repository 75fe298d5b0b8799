package worker

// ============================================================================
// Worker Client Test File
// Purpose: Verify process invocation, payload passing and outcome
//          classification using the test binary as a stand-in renderer
// ============================================================================

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// TestHelperProcess is not a real test: it is the fake renderer started by
// helperClient. The JSON payload is the argument after "--".
func TestHelperProcess(t *testing.T) {
	if os.Getenv("LABELMAKER_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "expected exactly one payload argument, got %d\n", len(args)-1)
		os.Exit(2)
	}
	payload := args[1]

	switch os.Getenv("HELPER_MODE") {
	case "success":
		fmt.Println("success")
		os.Exit(0)
	case "success-padded":
		fmt.Print("\n  success: wrote file\n")
		os.Exit(0)
	case "noise-before-success":
		fmt.Println("warning: font fallback")
		fmt.Println("success")
		os.Exit(0)
	case "disk-full":
		fmt.Fprintln(os.Stderr, "disk full")
		os.Exit(1)
	case "stdout-only":
		fmt.Println("  could not open output  ")
		os.Exit(3)
	case "silent":
		os.Exit(0)
	case "silent-fail":
		os.Exit(4)
	case "sleep":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	case "child-holds-output":
		startSleepingChild()
		time.Sleep(30 * time.Second)
		os.Exit(0)
	case "child-outlives-success":
		startSleepingChild()
		fmt.Println("success")
		os.Exit(0)
	case "record":
		if err := os.WriteFile(os.Getenv("HELPER_OUT"), []byte(payload), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("success")
		os.Exit(0)
	}
	os.Exit(5)
}

// startSleepingChild 啟動共用 stdout/stderr 的子程序（模擬 one-file 打包的 worker）
func startSleepingChild() {
	child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", "{}")
	child.Env = append(os.Environ(), "HELPER_MODE=sleep")
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(6)
	}
}

func helperClient(mode string, timeout time.Duration, extraEnv ...string) *Client {
	env := append([]string{"LABELMAKER_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode}, extraEnv...)
	return NewClient(Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env:     env,
		Timeout: timeout,
	}, nil)
}

func sampleRequest(savePath string) types.WorkerRequest {
	return types.WorkerRequest{
		Labels: []types.NormalizedLabel{
			{Name: "Sample", Count: 5, Aliquots: []types.NormalizedAliquot{}},
		},
		StartLabel: "B3",
		SkipLabels: "1:A1-A3",
		Border:     false,
		Padding:    1.75,
		FontSize:   12,
		TextAnchor: types.AnchorMiddle,
		SavePath:   savePath,
	}
}

// ============================================================================
// Classification Tests
// ============================================================================

func TestClassify(t *testing.T) {
	testCases := []struct {
		name   string
		code   int
		stdout string
		stderr string
		want   types.WorkerResponse
	}{
		{"success", 0, "success\n", "", types.WorkerResponse{Status: types.StatusSuccess}},
		{"success with leading whitespace", 0, "\n success", "", types.WorkerResponse{Status: types.StatusSuccess}},
		{"success ignores stderr", 0, "success", "DeprecationWarning", types.WorkerResponse{Status: types.StatusSuccess}},
		{"stderr wins", 1, "", "disk full", types.WorkerResponse{Status: types.StatusError, Message: "disk full"}},
		{"stderr over stdout", 1, "partial", "  boom \n", types.WorkerResponse{Status: types.StatusError, Message: "boom"}},
		{"stdout fallback", 2, " oops \n", "", types.WorkerResponse{Status: types.StatusError, Message: "oops"}},
		{"empty output exit zero", 0, "", "", types.WorkerResponse{Status: types.StatusError, Message: "Worker exited with code 0"}},
		{"empty output exit one", 1, "", "", types.WorkerResponse{Status: types.StatusError, Message: "Worker exited with code 1"}},
		{"success token but non-zero", 1, "success", "", types.WorkerResponse{Status: types.StatusError, Message: "success"}},
		{"noise before token", 0, "warn\nsuccess", "", types.WorkerResponse{Status: types.StatusError, Message: "warn\nsuccess"}},
		{"whitespace-only stderr", 1, "out", " \n", types.WorkerResponse{Status: types.StatusError, Message: "Worker exited with code 1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.code, tc.stdout, tc.stderr))
		})
	}
}

// ============================================================================
// Process Tests
// ============================================================================

func TestInvoke_Outcomes(t *testing.T) {
	testCases := []struct {
		mode string
		want types.WorkerResponse
	}{
		{"success", types.WorkerResponse{Status: types.StatusSuccess}},
		{"success-padded", types.WorkerResponse{Status: types.StatusSuccess}},
		{"noise-before-success", types.WorkerResponse{Status: types.StatusError, Message: "warning: font fallback\nsuccess"}},
		{"disk-full", types.WorkerResponse{Status: types.StatusError, Message: "disk full"}},
		{"stdout-only", types.WorkerResponse{Status: types.StatusError, Message: "could not open output"}},
		{"silent", types.WorkerResponse{Status: types.StatusError, Message: "Worker exited with code 0"}},
		{"silent-fail", types.WorkerResponse{Status: types.StatusError, Message: "Worker exited with code 4"}},
	}

	for _, tc := range testCases {
		t.Run(tc.mode, func(t *testing.T) {
			client := helperClient(tc.mode, 0)
			resp, err := client.Invoke(context.Background(), sampleRequest("/tmp/labels.pdf"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp)
		})
	}
}

func TestInvoke_PassesPayloadAsSingleArgument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	client := helperClient("record", 0, "HELPER_OUT="+out)

	req := sampleRequest("/home/user/Downloads/labels.pdf")
	resp, err := client.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, resp.Status)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))

	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"labels", "start_label", "skip_labels", "border", "padding", "font_size", "text_anchor", "save_path",
	}, keys)
	assert.Equal(t, "B3", got["start_label"])
	assert.Equal(t, "1:A1-A3", got["skip_labels"])
	assert.Equal(t, 12.0, got["font_size"])
	assert.Equal(t, "middle", got["text_anchor"])
	assert.Equal(t, "/home/user/Downloads/labels.pdf", got["save_path"])

	labels := got["labels"].([]interface{})
	first := labels[0].(map[string]interface{})
	assert.Equal(t, "Sample", first["name"])
	assert.Equal(t, false, first["use_aliquots"])
	assert.Equal(t, 5.0, first["count"])
	assert.Equal(t, []interface{}{}, first["aliquots"])
}

func TestInvoke_SpawnFailure(t *testing.T) {
	client := NewClient(Config{Command: filepath.Join(t.TempDir(), "no-such-renderer")}, nil)

	_, err := client.Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestInvoke_NoCommand(t *testing.T) {
	_, err := NewClient(Config{}, nil).Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestInvoke_Timeout(t *testing.T) {
	client := helperClient("sleep", 200*time.Millisecond)

	start := time.Now()
	resp, err := client.Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, types.StatusError, resp.Status)
	assert.Equal(t, "Worker timed out after 200ms", resp.Message)
}

func TestInvoke_TimeoutKillsChildProcesses(t *testing.T) {
	client := helperClient("child-holds-output", 300*time.Millisecond)

	start := time.Now()
	resp, err := client.Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "a child sharing stdout must not outlive the timeout")
	assert.Equal(t, types.StatusError, resp.Status)
	assert.Equal(t, "Worker timed out after 300ms", resp.Message)
}

func TestInvoke_ChildOutlivingRendererDoesNotBlock(t *testing.T) {
	client := helperClient("child-outlives-success", 0)

	start := time.Now()
	resp, err := client.Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, types.StatusSuccess, resp.Status)
}

func TestInvoke_CallerCancel(t *testing.T) {
	client := helperClient("sleep", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Invoke(ctx, sampleRequest("/tmp/x.pdf"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_ConcurrentCallsAreIndependent(t *testing.T) {
	client := helperClient("success", 0)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			resp, err := client.Invoke(context.Background(), sampleRequest("/tmp/x.pdf"))
			if err == nil && resp.Status != types.StatusSuccess {
				err = fmt.Errorf("unexpected status %s", resp.Status)
			}
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		assert.NoError(t, <-errs)
	}
}
