package render

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"album-publisher/config"
	"album-publisher/logging"
)

func newRenderer(t *testing.T) *Renderer {
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	return New(cfg, logging.Discard())
}

func mockExec(t *testing.T) {
	original := execCommandContext
	t.Cleanup(func() { execCommandContext = original })

	execCommandContext = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, arg...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
		return cmd
	}
}

func TestPropsFor(t *testing.T) {
	assert.Equal(t, Props{
		AlbumName:   "Cognitive Bloom",
		AlbumSlug:   "cognitive-bloom",
		AudioSrc:    "/albums/cognitive bloom-full-album.mp3",
		AlbumArtSrc: "/assets/albums/cognitive_bloom.webp",
	}, PropsFor("cognitive-bloom"))

	assert.Equal(t, "Sufi Lofi", PropsFor("sufi-lofi").AlbumName)
	assert.Equal(t, "Éther Über", PropsFor("éther-über").AlbumName)
	assert.Equal(t, "Deep  Focus", PropsFor("deep--focus").AlbumName)
}

func TestOutput(t *testing.T) {
	r := newRenderer(t)
	assert.Equal(t, filepath.Join(r.outDir, "x-video.mp4"), r.Output(KindVideo, "x"))
	assert.Equal(t, filepath.Join(r.outDir, "x-short.mp4"), r.Output(KindShort, "x"))
	assert.Equal(t, filepath.Join(r.outDir, "x-thumbnail.png"), r.Output(KindThumbnail, "x"))
}

func TestArgs(t *testing.T) {
	r := newRenderer(t)

	args, err := r.Args(KindShort, "deep-piano-focus")
	require.NoError(t, err)
	require.Len(t, args, 6)
	assert.Equal(t, []string{"remotion", "render", "src/index.tsx", "BreathingBloomShort", r.Output(KindShort, "deep-piano-focus")}, args[:5])

	var props Props
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(args[5], "--props=")), &props))
	assert.Equal(t, PropsFor("deep-piano-focus"), props)
}

func TestArgsThumbnail(t *testing.T) {
	r := newRenderer(t)

	args, err := r.Args(KindThumbnail, "neural-drift")
	require.NoError(t, err)
	assert.Equal(t, "still", args[1])
	assert.Equal(t, "Thumbnail", args[3])

	var props ThumbnailProps
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(args[5], "--props=")), &props))
	assert.Equal(t, ThumbnailProps{
		AlbumName:   "Neural Drift",
		AlbumArtSrc: "/assets/albums/neural_drift.webp",
		Duration:    "25 MIN",
	}, props)
}

func TestArgsUnknownKind(t *testing.T) {
	_, err := newRenderer(t).Args(Kind("trailer"), "x")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	mockExec(t)
	r := newRenderer(t)

	out, err := r.Run(context.Background(), KindVideo, "cognitive-bloom")
	require.NoError(t, err)
	assert.Equal(t, r.Output(KindVideo, "cognitive-bloom"), out)
	assert.FileExists(t, out)
}

func TestRunCommandFails(t *testing.T) {
	mockExec(t)
	r := newRenderer(t)

	_, err := r.Run(context.Background(), KindVideo, "fail-render")
	assert.Error(t, err)
}

func TestRunWithoutOutput(t *testing.T) {
	mockExec(t)
	r := newRenderer(t)

	_, err := r.Run(context.Background(), KindStory, "no-output")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output")
}

// TestHelperProcess stands in for the remotion CLI
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	var out string
	for i, a := range args {
		if strings.HasPrefix(a, "--props=") && i > 0 {
			out = args[i-1]
		}
	}

	switch {
	case strings.Contains(out, "fail-render"):
		os.Exit(1)
	case strings.Contains(out, "no-output"):
		os.Exit(0)
	case out != "":
		os.WriteFile(out, []byte("rendered"), 0644)
		os.Exit(0)
	}
	os.Exit(2)
}
