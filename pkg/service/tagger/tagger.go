// Package tagger classifies prompts into tags, categories, styles, colors and
// moods using fixed keyword dictionaries. It performs no I/O.
package tagger

import (
	"regexp"
	"slices"
	"strings"

	"github.com/m-mizutani/kiln/pkg/model"
)

type keyword struct {
	word    string
	pattern *regexp.Regexp
}

type category struct {
	name     string
	keywords []keyword
}

// Tagger is a deterministic, stateless classifier. Safe for concurrent use.
type Tagger struct {
	categories []category
	styles     []keyword
	colors     []keyword
	moods      []keyword
}

// New creates a Tagger over the built-in dictionaries
func New() *Tagger {
	t := &Tagger{
		styles: compileKeywords(defaultStyles),
		colors: compileKeywords(defaultColors),
		moods:  compileKeywords(defaultMoods),
	}
	for _, def := range defaultCategories {
		t.categories = append(t.categories, category{
			name:     def.name,
			keywords: compileKeywords(def.keywords),
		})
	}
	return t
}

// compileKeywords builds case-insensitive whole-word matchers
func compileKeywords(words []string) []keyword {
	keywords := make([]keyword, 0, len(words))
	for _, w := range words {
		keywords = append(keywords, keyword{
			word:    w,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return keywords
}

// Analyze classifies the prompt and its expansion. Elements from the language
// model analysis are optional and contribute subject and setting tags.
// Absence of matches yields empty collections, never an error.
func (t *Tagger) Analyze(prompt, expanded string, elements *model.Elements) *model.Tagging {
	text := prompt
	if expanded != "" && expanded != prompt {
		text = prompt + " " + expanded
	}

	categories, primary := t.matchCategories(text)
	styles := matchKeywords(t.styles, text)
	colors := matchKeywords(t.colors, text)
	moods := matchKeywords(t.moods, text)

	tags := make([]string, 0, len(categories)+len(styles)+maxColorTags+maxMoodTags+2)
	tags = append(tags, categories...)
	tags = append(tags, styles...)
	tags = append(tags, colors[:min(len(colors), maxColorTags)]...)
	tags = append(tags, moods[:min(len(moods), maxMoodTags)]...)

	if elements != nil {
		if s := normalizeTag(elements.Subject); s != "" && s != "unknown" {
			tags = append(tags, s)
		}
		if s := normalizeTag(elements.Setting); s != "" && s != "unspecified" {
			tags = append(tags, s)
		}
	}

	return &model.Tagging{
		Tags:            uniqueSorted(tags),
		Categories:      categories,
		PrimaryCategory: primary,
		Styles:          styles,
		Colors:          colors,
		Moods:           moods,
	}
}

// SuggestTags returns at most n tags for the text
func (t *Tagger) SuggestTags(text string, n int) []string {
	tags := t.Analyze(text, "", nil).Tags
	if n >= 0 && len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

// Categorize returns the primary category of the text, or empty string
func (t *Tagger) Categorize(text string) string {
	_, primary := t.matchCategories(text)
	return primary
}

// matchCategories returns matched categories in declaration order and the one
// with the most keyword hits; ties go to the first declared.
func (t *Tagger) matchCategories(text string) ([]string, string) {
	var (
		matched   []string
		primary   string
		bestScore int
	)
	for _, c := range t.categories {
		score := 0
		for _, kw := range c.keywords {
			if kw.pattern.MatchString(text) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		matched = append(matched, c.name)
		if score > bestScore {
			bestScore = score
			primary = c.name
		}
	}
	if matched == nil {
		matched = []string{}
	}
	return matched, primary
}

func matchKeywords(keywords []keyword, text string) []string {
	matched := []string{}
	for _, kw := range keywords {
		if kw.pattern.MatchString(text) {
			matched = append(matched, strings.ToLower(kw.word))
		}
	}
	return matched
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func uniqueSorted(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = normalizeTag(tag); tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
