package stories

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
)

const bioImageSize = 120

// AuthorID names an author declared in the site configuration.
type AuthorID string

func (id AuthorID) String() string { return string(id) }

// Bio is the author block shown in a post footer.
type Bio struct {
	Author AuthorID
	Name   string
	Text   template.HTML
	Image  *ImageDescriptor
}

// BioRegistry maps the configured authors to their bios. Lookups for
// anything else report not found.
type BioRegistry struct {
	bios map[AuthorID]Bio
}

func NewBioRegistry(bios ...Bio) *BioRegistry {
	r := &BioRegistry{bios: make(map[AuthorID]Bio, len(bios))}
	for _, b := range bios {
		r.bios[b.Author] = b
	}
	return r
}

func (r *BioRegistry) Lookup(id AuthorID) (Bio, bool) {
	if r == nil || id == "" {
		return Bio{}, false
	}
	b, ok := r.bios[id]
	return b, ok
}

func (r *BioRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bios)
}

// loadBios reads index.md and img.jpg from each author's bio directory.
// An author without a bio directory gets no entry.
func loadBios(ctx context.Context, authors []AuthorConf, md renderer, images *ImageProcessor) (*BioRegistry, error) {
	var bios []Bio
	for _, a := range authors {
		if a.Bio == "" {
			continue
		}
		text, err := os.ReadFile(filepath.Join(a.Bio, "index.md"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bio for %v: %w", a.ID, err)
		}

		b := Bio{
			Author: AuthorID(a.ID),
			Name:   a.Name,
			Text:   template.HTML(md.render(text)),
		}
		if b.Name == "" {
			b.Name = a.ID
		}

		imgPath := filepath.Join(a.Bio, "img.jpg")
		if _, err := os.Stat(imgPath); err == nil {
			alt := "Profile picture of " + b.Name
			if b.Image, err = images.Thumbnail(ctx, imgPath, bioImageSize, alt); err != nil {
				return nil, fmt.Errorf("bio image for %v: %w", a.ID, err)
			}
		}
		bios = append(bios, b)
	}
	return NewBioRegistry(bios...), nil
}
