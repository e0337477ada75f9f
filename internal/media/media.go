// Package media renders recommendation audio and cover images to files.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/librarian/internal/proxy"
)

const (
	DefaultOutputDir  = "generated"
	DefaultTTSModel   = "gpt-4o-mini-tts"
	DefaultVoice      = "alloy"
	DefaultImageModel = "gpt-image-1"

	coverSize = "1024x1024"
)

// Backend produces raw media. *proxy.Client implements it.
type Backend interface {
	Speech(ctx context.Context, req proxy.SpeechRequest) (io.ReadCloser, error)
	GenerateImage(ctx context.Context, req proxy.ImageRequest) ([]byte, error)
}

// Options configure a Renderer. Empty fields select the defaults.
type Options struct {
	OutputDir  string
	TTSModel   string
	Voice      string
	ImageModel string
}

// Renderer writes generated media under its output directory.
type Renderer struct {
	backend Backend
	opts    Options
}

// NewRenderer creates a Renderer.
func NewRenderer(backend Backend, opts Options) *Renderer {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.TTSModel == "" {
		opts.TTSModel = DefaultTTSModel
	}
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}
	return &Renderer{backend: backend, opts: opts}
}

// OutputDir returns the directory files are written to.
func (r *Renderer) OutputDir() string { return r.opts.OutputDir }

// Speech synthesizes text and returns the path of the written audio file.
func (r *Renderer) Speech(ctx context.Context, text, filename string) (string, error) {
	path, err := r.target(filename)
	if err != nil {
		return "", err
	}

	rc, err := r.backend.Speech(ctx, proxy.SpeechRequest{
		Model: r.opts.TTSModel,
		Voice: r.opts.Voice,
		Input: text,
	})
	if err != nil {
		return "", fmt.Errorf("synthesizing speech: %w", err)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// Cover generates a cover illustration and returns the path of the PNG file.
func (r *Renderer) Cover(ctx context.Context, title, themes, filename string) (string, error) {
	path, err := r.target(filename)
	if err != nil {
		return "", err
	}

	img, err := r.backend.GenerateImage(ctx, proxy.ImageRequest{
		Model:  r.opts.ImageModel,
		Prompt: CoverPrompt(title, themes),
		Size:   coverSize,
	})
	if err != nil {
		return "", fmt.Errorf("generating cover: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// target resolves filename inside the output directory, creating the
// directory. Path components in filename are ignored.
func (r *Renderer) target(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return filepath.Join(r.opts.OutputDir, name), nil
}

// CoverPrompt is the image prompt for a book cover.
func CoverPrompt(title, themes string) string {
	return fmt.Sprintf("Create a clean, suggestive book-cover style illustration for the book '%s'. "+
		"Visual hints of themes: %s. Minimalist, modern composition.", title, themes)
}

// SpeechText is the narration of one recommendation.
func SpeechText(title, rationale, summary string) string {
	return fmt.Sprintf("Recomandarea mea: %s. Pe scurt: %s. Rezumat: %s", title, rationale, summary)
}

// FileStem derives a file name stem from a title.
func FileStem(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "_")
}

// CoverFileName returns the cover file name for a title.
func CoverFileName(title string) string { return FileStem(title) + "_cover.png" }

// SpeechFileName returns the narration file name for a title.
func SpeechFileName(title string) string { return FileStem(title) + "_rec.wav" }
