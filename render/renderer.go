package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"album-publisher/config"
	"album-publisher/logging"
)

var execCommandContext = exec.CommandContext

// Kind is a renderable output
type Kind string

const (
	KindVideo     Kind = "video"
	KindShort     Kind = "short"
	KindStory     Kind = "story"
	KindThumbnail Kind = "thumbnail"
)

// Kinds lists every renderable kind
var Kinds = []Kind{KindVideo, KindShort, KindStory, KindThumbnail}

// Props are the composition input props for an album
type Props struct {
	AlbumName   string `json:"albumName"`
	AlbumSlug   string `json:"albumSlug"`
	AudioSrc    string `json:"audioSrc"`
	AlbumArtSrc string `json:"albumArtSrc"`
}

// ThumbnailProps are the input props of the still thumbnail
type ThumbnailProps struct {
	AlbumName   string `json:"albumName"`
	AlbumArtSrc string `json:"albumArtSrc"`
	Duration    string `json:"duration"`
}

// PropsFor derives asset paths from the album slug.
// "cognitive-bloom" -> "/albums/cognitive bloom-full-album.mp3",
// "/assets/albums/cognitive_bloom.webp", "Cognitive Bloom".
func PropsFor(slug string) Props {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if r, size := utf8.DecodeRuneInString(w); size > 0 {
			words[i] = string(unicode.ToUpper(r)) + w[size:]
		}
	}
	return Props{
		AlbumName:   strings.Join(words, " "),
		AlbumSlug:   slug,
		AudioSrc:    "/albums/" + strings.ReplaceAll(slug, "-", " ") + "-full-album.mp3",
		AlbumArtSrc: "/assets/albums/" + strings.ReplaceAll(slug, "-", "_") + ".webp",
	}
}

// Renderer drives the Remotion CLI
type Renderer struct {
	cfg    config.RenderConfig
	outDir string
	log    logrus.FieldLogger
}

// New creates a new Renderer
func New(cfg *config.Config, log logrus.FieldLogger) *Renderer {
	return &Renderer{cfg: cfg.Render, outDir: cfg.Paths.OutputDir, log: logging.Component(log, "render")}
}

// Output is the file a render of kind writes for slug
func (r *Renderer) Output(kind Kind, slug string) string {
	ext := "mp4"
	if kind == KindThumbnail {
		ext = "png"
	}
	return filepath.Join(r.outDir, fmt.Sprintf("%s-%s.%s", slug, kind, ext))
}

// Args builds the command line for rendering kind
func (r *Renderer) Args(kind Kind, slug string) ([]string, error) {
	id, ok := r.cfg.Compositions[string(kind)]
	if !ok || id == "" {
		return nil, fmt.Errorf("no composition configured for %q", kind)
	}

	var (
		props any
		verb  = "render"
	)
	p := PropsFor(slug)
	if kind == KindThumbnail {
		verb = "still"
		props = ThumbnailProps{AlbumName: p.AlbumName, AlbumArtSrc: p.AlbumArtSrc, Duration: r.cfg.Duration}
	} else {
		props = p
	}

	data, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}

	args := append([]string{}, r.cfg.Args...)
	args = append(args, verb, r.cfg.EntryPoint, id, r.Output(kind, slug), "--props="+string(data))
	return args, nil
}

// Run renders one kind for slug and returns the output path
func (r *Renderer) Run(ctx context.Context, kind Kind, slug string) (string, error) {
	args, err := r.Args(kind, slug)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	out := r.Output(kind, slug)
	log := r.log.WithFields(logrus.Fields{"kind": kind, "slug": slug})
	log.Infof("Rendering %s (this may take a while)", PropsFor(slug).AlbumName)

	cmd := execCommandContext(ctx, r.cfg.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("remotion %s: %w", kind, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("render produced no output: %w", err)
	}

	log.Infof("Rendered: %s", out)
	return out, nil
}
