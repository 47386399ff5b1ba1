package stories

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type ImageVariant struct {
	Src           string
	Width, Height int
}

// ImageDescriptor is what templates need to show a processed image.
type ImageDescriptor struct {
	Src           string
	SrcSet        string
	Alt           string
	Width, Height int
	Variants      []ImageVariant
}

func (d *ImageDescriptor) withAlt(alt string) *ImageDescriptor {
	c := *d
	c.Alt = alt
	return &c
}

// ImageProcessor turns source images into resized JPEG variants under
// outDir, served from urlPrefix. When resizing is disabled the source file
// is copied unchanged. Results are memoised per source and kind.
type ImageProcessor struct {
	outDir    string
	urlPrefix string
	widths    []int
	quality   int
	resize    bool

	mu    sync.Mutex
	cache map[string]*ImageDescriptor
}

func NewImageProcessor(outDir, urlPrefix string, widths []int, quality int, resize bool) *ImageProcessor {
	ws := slices.Clone(widths)
	slices.Sort(ws)
	ws = slices.Compact(ws)
	return &ImageProcessor{
		outDir:    outDir,
		urlPrefix: urlPrefix,
		widths:    ws,
		quality:   quality,
		resize:    resize,
		cache:     make(map[string]*ImageDescriptor),
	}
}

// Responsive produces one variant per configured width, never upscaling.
// Src points at the widest variant.
func (p *ImageProcessor) Responsive(ctx context.Context, src, alt string) (*ImageDescriptor, error) {
	d, err := p.memo("responsive:"+src, func() (*ImageDescriptor, error) {
		return p.process(ctx, src, func(img image.Image, hash string) ([]ImageVariant, error) {
			return p.responsiveVariants(ctx, img, hash)
		})
	})
	if err != nil {
		return nil, err
	}
	return d.withAlt(alt), nil
}

// Thumbnail center-crops the image to a square of the given size.
func (p *ImageProcessor) Thumbnail(ctx context.Context, src string, size int, alt string) (*ImageDescriptor, error) {
	d, err := p.memo("thumb:"+strconv.Itoa(size)+":"+src, func() (*ImageDescriptor, error) {
		return p.process(ctx, src, func(img image.Image, hash string) ([]ImageVariant, error) {
			v, err := p.writeVariant(squareCrop(img), size, size, fmt.Sprintf("%s-sq%d.jpg", hash, size))
			if err != nil {
				return nil, err
			}
			return []ImageVariant{v}, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return d.withAlt(alt), nil
}

func (p *ImageProcessor) memo(key string, fn func() (*ImageDescriptor, error)) (*ImageDescriptor, error) {
	p.mu.Lock()
	d, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := fn()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = d
	p.mu.Unlock()
	return d, nil
}

type variantFunc func(img image.Image, hash string) ([]ImageVariant, error)

func (p *ImageProcessor) process(ctx context.Context, src string, variants variantFunc) (*ImageDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:6])

	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	if !p.resize {
		return p.copyOriginal(src, data, hash)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %v: %w", src, err)
	}

	vs, err := variants(img, hash)
	if err != nil {
		return nil, err
	}
	return descriptorFor(vs), nil
}

func (p *ImageProcessor) copyOriginal(src string, data []byte, hash string) (*ImageDescriptor, error) {
	name := hash + "-" + Slugify(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))) + strings.ToLower(filepath.Ext(src))
	if err := os.WriteFile(filepath.Join(p.outDir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	d := &ImageDescriptor{Src: path.Join(p.urlPrefix, name)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		d.Width, d.Height = cfg.Width, cfg.Height
	}
	return d, nil
}

func (p *ImageProcessor) responsiveVariants(ctx context.Context, img image.Image, hash string) ([]ImageVariant, error) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("empty image")
	}

	var vs []ImageVariant
	for _, w := range p.widths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w = min(w, srcW)
		h := max(1, srcH*w/srcW)
		v, err := p.writeVariant(img, w, h, fmt.Sprintf("%s-%d.jpg", hash, w))
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
		if w == srcW {
			break
		}
	}
	return vs, nil
}

// writeVariant scales img to w×h and encodes it as JPEG, unless a file
// with that name is already there from an earlier build.
func (p *ImageProcessor) writeVariant(img image.Image, w, h int, name string) (ImageVariant, error) {
	v := ImageVariant{Src: path.Join(p.urlPrefix, name), Width: w, Height: h}
	out := filepath.Join(p.outDir, name)
	if _, err := os.Stat(out); err == nil {
		return v, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return v, fmt.Errorf("encode jpeg: %w", err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return v, fmt.Errorf("write image: %w", err)
	}
	return v, nil
}

func squareCrop(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Copy(dst, image.Point{}, img, image.Rect(x0, y0, x0+side, y0+side), draw.Src, nil)
	return dst
}

func descriptorFor(vs []ImageVariant) *ImageDescriptor {
	d := &ImageDescriptor{Variants: vs}
	if len(vs) == 0 {
		return d
	}
	largest := vs[len(vs)-1]
	d.Src, d.Width, d.Height = largest.Src, largest.Width, largest.Height

	set := make([]string, 0, len(vs))
	for _, v := range vs {
		set = append(set, v.Src+" "+strconv.Itoa(v.Width)+"w")
	}
	d.SrcSet = strings.Join(set, ", ")
	return d
}
