package whispercli_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/engine/whispercli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinary writes a shell script standing in for whisper-cli.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func testRequest() sg.EngineRequest {
	return sg.EngineRequest{Clip: sg.Clip{Path: "/tmp/clip.wav"}, Language: "en-US"}
}

func TestArgs(t *testing.T) {
	e := whispercli.New("/models/ggml-base.en.bin", whispercli.WithThreads(4))

	assert.Equal(t,
		[]string{"-m", "/models/ggml-base.en.bin", "-f", "/tmp/clip.wav", "-nt", "-np", "-l", "en", "-t", "4"},
		e.Args(testRequest()),
	)
}

func TestTranscribe_Stdout(t *testing.T) {
	bin := fakeBinary(t, "printf '  they call me\\n  tonight \\n'\n")
	e := whispercli.New("model.bin", whispercli.WithBinary(bin))

	tr, err := e.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "they call me tonight", tr.Text)
}

func TestTranscribe_BlankOutput(t *testing.T) {
	bin := fakeBinary(t, "echo ''\n")

	_, err := whispercli.New("model.bin", whispercli.WithBinary(bin)).Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, sg.ErrUnintelligible)
}

func TestTranscribe_NonZeroExit(t *testing.T) {
	bin := fakeBinary(t, "echo 'failed to load model' >&2\nexit 3\n")

	_, err := whispercli.New("model.bin", whispercli.WithBinary(bin)).Transcribe(context.Background(), testRequest())
	require.ErrorIs(t, err, sg.ErrServiceRequest)
	assert.Contains(t, err.Error(), "failed to load model")
}

func TestTranscribe_MissingBinary(t *testing.T) {
	e := whispercli.New("model.bin", whispercli.WithBinary(filepath.Join(t.TempDir(), "nope")))

	_, err := e.Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, sg.ErrServiceRequest)
}

func TestTranscribe_RequiresClipPath(t *testing.T) {
	_, err := whispercli.New("model.bin").Transcribe(context.Background(), sg.EngineRequest{})
	assert.ErrorIs(t, err, sg.ErrServiceRequest)
}
