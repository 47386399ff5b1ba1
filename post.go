package stories

import (
	"bytes"
	"fmt"
	"time"
)

// Frontmatter is the metadata block at the top of a content file.
type Frontmatter struct {
	Title        string   `yaml:"title"`
	Slug         string   `yaml:"slug"`
	Date         string   `yaml:"date"`
	Description  string   `yaml:"description"`
	Tags         []string `yaml:"tags"`
	Author       string   `yaml:"author"`
	CanonicalURL string   `yaml:"canonicalUrl"`
	Draft        bool     `yaml:"draft"`

	// Hidden is whatever scalar the author wrote. Only the boolean true hides
	// a post; see Post.IsHidden.
	Hidden any `yaml:"hidden"`

	HeroImage           string `yaml:"hero_image"`
	HeroImageAlt        string `yaml:"hero_image_alt"`
	HeroImageCreditLink string `yaml:"hero_image_credit_link"`
	HeroImageCreditText string `yaml:"hero_image_credit_text"`
}

type HeroImage struct {
	Source     string // absolute path of the source file
	Alt        string
	CreditLink string
	CreditText string
	Image      *ImageDescriptor
}

type Post struct {
	Title, Slug  string
	Description  string
	Excerpt      string
	Date         time.Time
	TimeToRead   int
	Path         string
	Body         []byte
	Tags         []Tag
	Author       AuthorID
	CanonicalURL string
	Hero         *HeroImage
	Meta         Frontmatter
}

// IsHidden reports whether the hidden flag is exactly the boolean true.
// Strings, numbers and false all leave the post visible.
func (p *Post) IsHidden() bool {
	hidden, ok := p.Meta.Hidden.(bool)
	return ok && hidden
}

func (p *Post) IsDraft() bool { return p.Meta.Draft }

// Called from templates
func (p *Post) FormatDate() string {
	return formatDate(p.Date)
}

func (p *Post) FormatDateShort() string {
	return formatDateShort(p.Date)
}

func (p *Post) String() string {
	b := new(bytes.Buffer)
	b.WriteString("title: ")
	b.WriteString(p.Title)
	b.WriteString("\nslug: ")
	b.WriteString(p.Slug)
	b.WriteString("\ndate: ")
	b.WriteString(p.Date.String())
	b.WriteString("\ntags: ")
	fmt.Fprintln(b, p.Tags)

	body := p.Body
	if len(body) > 200 {
		body = append(body[:200:200], '.', '.', '.')
	}
	b.WriteString("body: ")
	b.Write(body)

	return b.String()
}

// Page is a stand-alone page outside the blog, e.g. "about".
type Page struct {
	Title, Slug string
	Description string
	Path        string
	Body        []byte
	Meta        Frontmatter
}

type posts []*Post

func (ps posts) earliestDate() time.Time {
	t := time.Now()
	for _, p := range ps {
		if p.Date.Before(t) {
			t = p.Date
		}
	}
	return t
}

func (ps posts) latestDate() time.Time {
	var t time.Time
	for _, p := range ps {
		if p.Date.After(t) {
			t = p.Date
		}
	}
	return t
}

func (ps posts) pruneOlderThan(min time.Time) posts {
	recent := make(posts, 0, len(ps))
	for _, p := range ps {
		if !p.Date.Before(min) {
			recent = append(recent, p)
		}
	}
	return recent
}

// VisiblePosts drops the posts whose hidden flag is set. The input is not
// modified.
func VisiblePosts(ps []*Post) []*Post {
	visible := make([]*Post, 0, len(ps))
	for _, p := range ps {
		if p == nil || p.IsHidden() {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}
