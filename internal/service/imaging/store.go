package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	// Decoders for the screenshot formats clients upload.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/z-pilot/backend/internal/analysis/boxes"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

// DefaultWorkingSize is the square edge the model sees.
const DefaultWorkingSize = 1024

// Config describes where images are written and how they are served.
type Config struct {
	StaticDir   string
	OutputDir   string
	URLPrefix   string
	Order       boxes.Order
	WorkingSize int
	Now         func() time.Time
}

// Store decodes uploads, produces the working copy, and persists PNG artifacts.
type Store struct {
	cfg Config
}

// Annotated lists the files written for one analysed screenshot.
type Annotated struct {
	ResizedPath  string
	OriginalPath string
	ResizedURL   string
	OriginalURL  string
	// Boxes is how many rectangles were drawn per image.
	Boxes int
}

// NewStore validates the configuration and fills defaults.
func NewStore(cfg Config) (*Store, error) {
	if cfg.StaticDir == "" {
		return nil, fmt.Errorf("static dir is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.StaticDir, "output")
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/static"
	}
	if cfg.Order == "" {
		cfg.Order = boxes.OrderYYXX
	}
	if cfg.WorkingSize <= 0 {
		cfg.WorkingSize = DefaultWorkingSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	rel, err := filepath.Rel(cfg.StaticDir, cfg.OutputDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("output dir %q must live inside static dir %q", cfg.OutputDir, cfg.StaticDir)
	}

	return &Store{cfg: cfg}, nil
}

// Decode parses an uploaded image in any registered format.
func (s *Store) Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failure.New(failure.KindInput, "decode upload", err)
	}
	log.Debug().Str("format", format).Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("decoded upload")
	return img, nil
}

// Resize returns the square working copy sent to the model.
func (s *Store) Resize(img image.Image) image.Image {
	size := uint(s.cfg.WorkingSize)
	return resize.Resize(size, size, img, resize.Lanczos3)
}

// SaveScreenshot persists the untouched upload for the session history.
func (s *Store) SaveScreenshot(ctx context.Context, img image.Image, sessionID string) (string, error) {
	name := fmt.Sprintf("screenshot_%s_%s.png", s.timestamp(), sanitize(sessionID))
	target := filepath.Join(s.cfg.OutputDir, name)
	if err := s.save(ctx, target, img); err != nil {
		return "", err
	}
	return target, nil
}

// SaveAnnotated draws the boxes found in replyText onto copies of both images and
// writes them out under names qualified by timestamp and session. A reply without
// parseable boxes still produces both files.
func (s *Store) SaveAnnotated(ctx context.Context, original, resized image.Image, sessionID, replyText string) (Annotated, error) {
	list, err := boxes.Parse(replyText)
	if err != nil {
		log.Warn().Err(err).Str("raw", replyText).Msg("error parsing bounding boxes, saving unannotated images")
	}

	suffix := s.timestamp() + "_" + sanitize(sessionID)
	out := Annotated{
		ResizedPath:  filepath.Join(s.cfg.OutputDir, "annotated_resized_"+suffix+".png"),
		OriginalPath: filepath.Join(s.cfg.OutputDir, "annotated_original_"+suffix+".png"),
	}

	g, gctx := errgroup.WithContext(ctx)
	var drawn int
	g.Go(func() error {
		n, err := s.renderTo(gctx, out.ResizedPath, resized, list)
		drawn = n
		return err
	})
	g.Go(func() error {
		_, err := s.renderTo(gctx, out.OriginalPath, original, list)
		return err
	})
	if err := g.Wait(); err != nil {
		return Annotated{}, err
	}
	out.Boxes = drawn

	if out.ResizedURL, err = s.URL(out.ResizedPath); err != nil {
		return Annotated{}, err
	}
	if out.OriginalURL, err = s.URL(out.OriginalPath); err != nil {
		return Annotated{}, err
	}
	return out, nil
}

// URL maps a file under the static dir to its public path.
func (s *Store) URL(file string) (string, error) {
	rel, err := filepath.Rel(s.cfg.StaticDir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", failure.Newf(failure.KindInternal, "public url", "%s is outside %s", file, s.cfg.StaticDir)
	}
	return path.Join(s.cfg.URLPrefix, filepath.ToSlash(rel)), nil
}

func (s *Store) renderTo(ctx context.Context, target string, src image.Image, list []boxes.BoundingBox) (int, error) {
	canvas := Clone(src)
	b := canvas.Bounds()

	anns, skipped := boxes.Annotations(list, b.Dx(), b.Dy(), s.cfg.Order)
	for _, box := range skipped {
		log.Warn().Interface("box", box.Raw).Msg("unknown bounding box format")
	}
	Annotate(canvas, anns)

	return len(anns), s.save(ctx, target, canvas)
}

func (s *Store) save(ctx context.Context, target string, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failure.New(failure.KindInternal, "create output dir", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return failure.New(failure.KindInternal, "create image file", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return failure.New(failure.KindInternal, "encode png", err)
	}
	if err := f.Close(); err != nil {
		return failure.New(failure.KindInternal, "close image file", err)
	}

	log.Debug().Str("path", target).Msg("saved image")
	return nil
}

func (s *Store) timestamp() string {
	now := s.cfg.Now()
	return fmt.Sprintf("%d.%06d", now.Unix(), now.Nanosecond()/1000)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitize(id string) string {
	if id == "" {
		return "anonymous"
	}
	return unsafeChars.ReplaceAllString(id, "_")
}
