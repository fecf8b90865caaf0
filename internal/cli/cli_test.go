package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmorgan81/imagine/internal/midjourney/mjtest"
	"github.com/dmorgan81/imagine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.toml")))
	err := cmd.Execute()
	return out.String(), err
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	images := imageServer(t)
	srv := mjtest.NewServer().
		OnSubmit(`{"code":1,"result":"T1"}`).
		OnFetch("T1", `{"status":"IN_PROGRESS"}`, fmt.Sprintf(`{"status":"SUCCESS","imageUrl":"%s/t1.png"}`, images.URL))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	out, err := execute(t, "generate",
		"--prompt", "A red apple on a table",
		"--modifier", "version=6.0",
		"--server", srv.URL,
		"--interval", "1ms",
		"--out", dir)
	require.NoError(t, err)

	dest := filepath.Join(dir, defaultName)
	assert.Equal(t, "-\tdone\t"+dest+"\n", out)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/t1.png", string(data))
	assert.Equal(t, "A red apple on a table --version 6.0", srv.Submitted[0]["prompt"])
	assert.Equal(t, 2, srv.FetchCount("T1"))
}

func TestGenerateSubmitOnlyThenResume(t *testing.T) {
	images := imageServer(t)
	srv := mjtest.NewServer().
		OnSubmit(`{"code":22,"result":"T2"}`).
		OnFetch("T2", fmt.Sprintf(`{"status":"SUCCESS","imageUrl":"%s/t2.png"}`, images.URL))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	out, err := execute(t, "generate", "--prompt", "cat", "--submit-only", "--server", srv.URL, "--out", dir)
	require.NoError(t, err)
	assert.Equal(t, "-\tpending\tT2\n", out)
	assert.Zero(t, srv.FetchCount("T2"))

	out, err = execute(t, "generate", "--task-id", "T2", "--name", "cat.png", "--server", srv.URL, "--out", dir)
	require.NoError(t, err)
	assert.Equal(t, "-\tdone\t"+filepath.Join(dir, "cat.png")+"\n", out)
	assert.Equal(t, 1, srv.SubmitCount())
}

func TestGenerateConflictingFlags(t *testing.T) {
	_, err := execute(t, "generate", "--task-id", "T1", "--submit-only")
	assert.Error(t, err)

	_, err = execute(t, "generate")
	assert.Error(t, err)
}

func TestGenerateRemoteFailure(t *testing.T) {
	srv := mjtest.NewServer().
		OnSubmit(`{"code":1,"result":"T3"}`).
		OnFetch("T3", `{"status":"FAILURE","failureReason":"banned prompt"}`)
	t.Cleanup(srv.Close)

	_, err := execute(t, "generate", "--prompt", "cat", "--server", srv.URL, "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned prompt")
}

func TestGeneratePromptSet(t *testing.T) {
	images := imageServer(t)
	srv := mjtest.NewServer().
		OnSubmit(`{"code":1,"result":"T1"}`, `{"code":1,"result":"T2"}`).
		OnFetch("T1", fmt.Sprintf(`{"status":"SUCCESS","imageUrl":"%s/1.png"}`, images.URL)).
		OnFetch("T2", fmt.Sprintf(`{"status":"SUCCESS","imageUrl":"%s/2.png"}`, images.URL))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	prompts := filepath.Join(dir, "prompts.json")
	require.NoError(t, os.WriteFile(prompts, []byte(`[
		{"id": 1, "prompt": "an apple"},
		{"id": 2, "prompt": "a pear"}
	]`), 0o600))
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, "generate", "--prompts", prompts, "--server", srv.URL, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1\tdone\t"+filepath.Join(out, "1.jpeg"))
	assert.Contains(t, stdout, "2\tdone\t"+filepath.Join(out, "2.jpeg"))

	data, err := os.ReadFile(filepath.Join(out, "log.json"))
	require.NoError(t, err)
	var entries map[string]store.RunEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Equal(t, "a pear", entries["2"].Prompt)
	assert.Equal(t, "T2", entries["2"].TaskID)
	assert.Equal(t, filepath.Join(out, "2.jpeg"), entries["2"].ImagePath)

	_, err = execute(t, "generate", "--prompts", prompts, "--server", srv.URL, "--out", out)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.SubmitCount(), "generated prompts are skipped")

	_, err = execute(t, "generate", "--prompts", prompts, "--id", "9", "--out", out)
	assert.Error(t, err)
}

func TestGenerateResubmitsFailedTask(t *testing.T) {
	images := imageServer(t)
	srv := mjtest.NewServer().
		OnSubmit(`{"code":1,"result":"T1"}`, `{"code":1,"result":"T2"}`).
		OnFetch("T1", `{"status":"FAILURE","failureReason":"banned"}`).
		OnFetch("T2", fmt.Sprintf(`{"status":"SUCCESS","imageUrl":"%s/2.png"}`, images.URL))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	prompts := filepath.Join(dir, "prompts.json")
	require.NoError(t, os.WriteFile(prompts, []byte(`[{"id": 1, "prompt": "an apple"}]`), 0o600))
	out := filepath.Join(dir, "out")
	args := []string{"generate", "--prompts", prompts, "--server", srv.URL, "--out", out}

	stdout, err := execute(t, append(args, "--submit-only")...)
	require.NoError(t, err)
	assert.Equal(t, "1\tpending\tT1\n", stdout)

	_, err = execute(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned")

	l, err := store.OpenRunLog(filepath.Join(out, "log.json"))
	require.NoError(t, err)
	entry, ok := l.Entry("1")
	require.True(t, ok)
	assert.Empty(t, entry.TaskID)
	assert.Contains(t, entry.Error, "banned")

	stdout, err = execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "1\tdone\t"+filepath.Join(out, "1.jpeg")+"\n", stdout)
	assert.Equal(t, 2, srv.SubmitCount())
	assert.Equal(t, 1, srv.FetchCount("T1"))
}

func TestPoll(t *testing.T) {
	srv := mjtest.NewServer().OnList(`{"result":[
		{"id":"T1","status":"SUCCESS","imageUrl":"https://x/1.png"},
		{"id":"T2","status":"FAILURE","failureReason":"banned"}
	]}`)
	t.Cleanup(srv.Close)

	out, err := execute(t, "poll", "T1", "T2", "T3", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "https://x/1.png")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "banned")
	assert.Contains(t, out, "UNKNOWN")
	require.Len(t, srv.Listed, 1)
	assert.Equal(t, []string{"T1", "T2", "T3"}, srv.Listed[0])
}

func TestDownload(t *testing.T) {
	images := imageServer(t)
	dest := filepath.Join(t.TempDir(), "a", "b.jpeg")

	out, err := execute(t, "download", images.URL+"/b.jpeg", dest)
	require.NoError(t, err)
	assert.Equal(t, dest+"\n", out)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/b.jpeg", string(data))
}
