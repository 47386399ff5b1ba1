package stories

import (
	"bytes"
	"cmp"
	"slices"
)

type Tag struct {
	Name string
	Slug string
}

func newTag(name string) Tag {
	return Tag{Name: name, Slug: Slugify(name)}
}

func (t Tag) String() string { return t.Name }

// TagCount is the number of visible posts carrying a tag.
type TagCount struct {
	Name       string `json:"fieldValue"`
	TotalCount int    `json:"totalCount"`
}

// CountTags counts tag occurrences over all posts that are not hidden.
// Posts without tags contribute nothing. Names are compared as-is, without
// case folding or trimming. Tags are returned in the order they are first
// seen; callers wanting another order sort the result.
func CountTags(ps []*Post) []TagCount {
	counts := make(map[string]int)
	order := make([]string, 0, 20)

	for _, p := range ps {
		if p == nil || p.IsHidden() || p.Tags == nil {
			continue
		}
		for _, t := range p.Tags {
			if _, seen := counts[t.Name]; !seen {
				order = append(order, t.Name)
			}
			counts[t.Name]++
		}
	}

	list := make([]TagCount, 0, len(order))
	for _, name := range order {
		list = append(list, TagCount{Name: name, TotalCount: counts[name]})
	}
	return list
}

func SortTagCountsByName(tcs []TagCount) {
	slices.SortFunc(tcs, func(a, b TagCount) int { return cmp.Compare(a.Name, b.Name) })
}

// SortTagCountsByCount puts the most used tags first, ties broken by name.
func SortTagCountsByCount(tcs []TagCount) {
	slices.SortFunc(tcs, func(a, b TagCount) int {
		if c := cmp.Compare(b.TotalCount, a.TotalCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

type tagWithPosts struct {
	Tag   Tag
	Posts posts
}

func (t tagWithPosts) EarliestDateFormatted() string {
	return formatDateShort(t.Posts.earliestDate())
}

func (t tagWithPosts) LatestDateFormatted() string {
	return formatDateShort(t.Posts.latestDate())
}

// Posts grouped by tag. Create using groupByTag, which sorts by number of
// posts per tag, then by newest post.
type postsByTag []tagWithPosts

func (pt *postsByTag) addPost(t Tag, p *Post) {
	for i, tp := range *pt {
		if tp.Tag.Name == t.Name {
			tp.Posts = append(tp.Posts, p)
			(*pt)[i] = tp
			return
		}
	}

	*pt = append(*pt, tagWithPosts{Tag: t, Posts: posts{p}})
}

func (pt postsByTag) String() string {
	b := new(bytes.Buffer)
	for _, t := range pt {
		b.WriteString(t.Tag.Name)
		b.WriteString(": ")
		for i, p := range t.Posts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Return the most frequent n tags that have at least minPosts posts.
func (pt postsByTag) frequentTags(n, minPosts int) []Tag {
	frequent := make([]Tag, 0, n)
	for i, t := range pt {
		if i == n || len(t.Posts) < minPosts {
			break
		}
		frequent = append(frequent, t.Tag)
	}

	return frequent
}

// groupByTag groups visible posts by tag, using the same visibility rule
// as CountTags.
func groupByTag(ps posts) postsByTag {
	byTag := make(postsByTag, 0, 20)

	for _, p := range VisiblePosts(ps) {
		for _, t := range p.Tags {
			byTag.addPost(t, p)
		}
	}

	// Most posts first, then newest post first.
	slices.SortStableFunc(byTag, func(a, b tagWithPosts) int {
		if c := cmp.Compare(len(b.Posts), len(a.Posts)); c != 0 {
			return c
		}
		return b.Posts.latestDate().Compare(a.Posts.latestDate())
	})

	return byTag
}
