package stories

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	excerptLength  = 140
	wordsPerMinute = 200
)

var (
	ErrNoDate        = errors.New("no date")
	ErrDuplicateSlug = errors.New("duplicate slug")
	ErrInvalidSlug   = errors.New("invalid slug")
)

// Front matter is decoded with YAML 1.2 rules, so yes, on and y stay
// strings instead of turning into booleans.
var frontmatterFormats = []*frontmatter.Format{
	frontmatter.NewFormat("---", "---", yaml.Unmarshal),
	frontmatter.NewFormat("---yaml", "---", yaml.Unmarshal),
}

var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func findPostFiles(dir string, fileExtensions []string) ([]string, error) {
	files := make([]string, 0, 100)

	walkFunc := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}

		if !d.IsDir() && slices.Contains(fileExtensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	}

	err := filepath.WalkDir(dir, walkFunc)
	return files, err
}

type contentFile struct {
	meta     Frontmatter
	body     []byte
	baseName string
	slug     string
}

// readContentFile splits a content file into front matter and markdown body.
// A file without front matter is all body.
func readContentFile(path, sourceDir string) (*contentFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cf := &contentFile{}
	body, err := frontmatter.Parse(f, &cf.meta, frontmatterFormats...)
	if err != nil {
		return nil, fmt.Errorf("invalid front matter in %v: %w", path, err)
	}
	cf.body = body

	fileBaseName := filepath.Base(path)
	cf.baseName = strings.TrimSuffix(fileBaseName, filepath.Ext(fileBaseName))
	if cf.baseName == "index" {
		// The post is a directory, e.g. 2024-03-01-hello/index.md.
		cf.baseName = filepath.Base(filepath.Dir(path))
	}

	cf.slug = cf.meta.Slug
	if cf.slug == "" {
		cf.slug = slugFromPath(path, sourceDir)
	}
	cf.slug = strings.Trim(filepath.ToSlash(cf.slug), "/")
	return cf, nil
}

// slugFromPath is the path relative to the source dir without extension;
// an index file takes the name of its directory.
func slugFromPath(path, sourceDir string) string {
	rel, err := filepath.Rel(sourceDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	if filepath.Base(rel) == "index" && filepath.Dir(rel) != "." {
		rel = filepath.Dir(rel)
	}
	return filepath.ToSlash(rel)
}

func titleFromFileName(baseName string) string {
	t := strings.NewReplacer("-", " ", "_", " ").Replace(baseName)
	return cases.Title(language.English).String(strings.TrimSpace(t))
}

func extractDateFromFilename(filename string, dateStampFormat string) (time.Time, error) {
	if len(filename) < len(dateStampFormat) {
		return time.Time{}, fmt.Errorf("%w: name %v too short for a date stamp", ErrNoDate, filename)
	}

	dateStr := filename[:len(dateStampFormat)]
	date, err := time.Parse(dateStampFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date stamp in %v", ErrNoDate, filename)
	}
	return date, nil
}

// trimDateStamp drops a leading date stamp, as in 2024-03-01-hello.
func trimDateStamp(baseName, dateStampFormat string) string {
	if _, err := extractDateFromFilename(baseName, dateStampFormat); err != nil {
		return baseName
	}
	return strings.TrimLeft(baseName[len(dateStampFormat):], "-_ ")
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func readPostFromFile(path, sourceDir, dateStampFormat string) (*Post, error) {
	cf, err := readContentFile(path, sourceDir)
	if err != nil {
		return nil, err
	}
	fm := cf.meta

	p := &Post{
		Title:        fm.Title,
		Slug:         cf.slug,
		Description:  fm.Description,
		Path:         path,
		Body:         cf.body,
		Author:       AuthorID(strings.TrimSpace(fm.Author)),
		CanonicalURL: fm.CanonicalURL,
		Meta:         fm,
	}
	if p.Title == "" {
		p.Title = titleFromFileName(trimDateStamp(cf.baseName, dateStampFormat))
	}

	if fm.Tags != nil {
		p.Tags = make([]Tag, 0, len(fm.Tags))
		for _, name := range fm.Tags {
			p.Tags = append(p.Tags, newTag(name))
		}
	}

	if fm.Date != "" {
		if p.Date, err = parseDate(fm.Date); err != nil {
			return nil, fmt.Errorf("post %v: %w", path, err)
		}
	} else if p.Date, err = extractDateFromFilename(cf.baseName, dateStampFormat); err != nil {
		return nil, fmt.Errorf("post %v: %w", path, err)
	}

	if fm.HeroImage != "" {
		p.Hero = &HeroImage{
			Source:     resolveRelative(fm.HeroImage, filepath.Dir(path)),
			Alt:        fm.HeroImageAlt,
			CreditLink: fm.HeroImageCreditLink,
			CreditText: fm.HeroImageCreditText,
		}
	}

	text := plainText(cf.body)
	p.Excerpt = p.Description
	if p.Excerpt == "" {
		p.Excerpt = excerpt(text, excerptLength)
	}
	p.TimeToRead = timeToRead(text)

	return p, nil
}

func readPageFromFile(path, sourceDir string) (*Page, error) {
	cf, err := readContentFile(path, sourceDir)
	if err != nil {
		return nil, err
	}
	pg := &Page{
		Title:       cf.meta.Title,
		Slug:        cf.slug,
		Description: cf.meta.Description,
		Path:        path,
		Body:        cf.body,
		Meta:        cf.meta,
	}
	if pg.Title == "" {
		pg.Title = titleFromFileName(cf.baseName)
	}
	return pg, nil
}

func resolveRelative(p, dir string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}

// plainText strips the most common markdown markup so that words can be
// counted and an excerpt taken.
func plainText(md []byte) string {
	var b strings.Builder
	inCode := false
	for _, line := range bytes.Split(md, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, []byte("```")) {
			inCode = !inCode
			continue
		}
		if inCode || len(trimmed) == 0 || bytes.HasPrefix(trimmed, []byte("import ")) {
			continue
		}
		trimmed = bytes.TrimLeft(trimmed, "#>*- ")
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.Write(trimmed)
	}
	return strings.NewReplacer("**", "", "__", "", "`", "", "*", "").Replace(b.String())
}

func excerpt(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

func timeToRead(text string) int {
	words := len(strings.Fields(text))
	return max(1, int(math.Ceil(float64(words)/wordsPerMinute)))
}

// readSource reads every content file of one source directory.
func readSource(src SourceConf, conf *SiteConf, drafts bool) (posts, []*Page, error) {
	files, err := findPostFiles(src.Path, conf.FileExtensions)
	if err != nil {
		return nil, nil, fmt.Errorf("source %v: %w", src.Name, err)
	}

	var ps posts
	var pages []*Page
	for _, f := range files {
		switch src.Kind {
		case SourceKindPages:
			pg, err := readPageFromFile(f, src.Path)
			if err != nil {
				return nil, nil, err
			}
			if drafts || !pg.Meta.Draft {
				pages = append(pages, pg)
			}
		default:
			p, err := readPostFromFile(f, src.Path, conf.DateStampFormat)
			if err != nil {
				return nil, nil, err
			}
			if drafts || !p.IsDraft() {
				ps = append(ps, p)
			}
		}
	}
	return ps, pages, nil
}
