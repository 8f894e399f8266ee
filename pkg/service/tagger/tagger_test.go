package tagger_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/tagger"
)

func TestAnalyzeDragonPrompt(t *testing.T) {
	tg := tagger.New()
	result := tg.Analyze("a glowing dragon on a cliff at sunset", "", nil)

	gt.True(t, slices.Contains(result.Tags, "fantasy"))
	gt.True(t, slices.Contains(result.Categories, "fantasy"))
	gt.True(t, slices.Contains(result.Categories, "landscape"))
	// sunset ties dragon, landscape is declared first
	gt.Equal(t, result.PrimaryCategory, "landscape")
	gt.A(t, result.Moods).Length(0)
	gt.False(t, slices.Contains(result.Tags, "glowing"))
}

func TestAnalyzeCaseInsensitiveWholeWord(t *testing.T) {
	tg := tagger.New()

	result := tg.Analyze("A RED Dragon", "", nil)
	gt.True(t, slices.Contains(result.Colors, "red"))
	gt.True(t, slices.Contains(result.Categories, "fantasy"))

	// "cartoonish" must not match "cartoon", "scatter" must not match "cat"
	result = tg.Analyze("cartoonish scatter plot", "", nil)
	gt.False(t, slices.Contains(result.Styles, "cartoon"))
	gt.False(t, slices.Contains(result.Categories, "animal"))
}

func TestAnalyzeNoMatches(t *testing.T) {
	tg := tagger.New()
	result := tg.Analyze("qwerty zxcv", "", nil)

	gt.A(t, result.Tags).Length(0)
	gt.A(t, result.Categories).Length(0)
	gt.A(t, result.Styles).Length(0)
	gt.A(t, result.Colors).Length(0)
	gt.A(t, result.Moods).Length(0)
	gt.Equal(t, result.PrimaryCategory, "")
}

func TestAnalyzePrimaryCategoryTieBreak(t *testing.T) {
	tg := tagger.New()
	// one hit each for character (knight) and animal (horse): character is declared first
	result := tg.Analyze("horse and knight", "", nil)
	gt.Equal(t, result.PrimaryCategory, "character")

	// two hits for animal beat one for character
	result = tg.Analyze("knight with a horse and a wolf", "", nil)
	gt.Equal(t, result.PrimaryCategory, "animal")
}

func TestAnalyzeLimitsColorsAndMoods(t *testing.T) {
	tg := tagger.New()
	result := tg.Analyze("red blue green yellow, happy sad angry", "", nil)

	gt.A(t, result.Colors).Length(4)
	gt.A(t, result.Moods).Length(3)
	gt.True(t, slices.Contains(result.Tags, "red"))
	gt.True(t, slices.Contains(result.Tags, "green"))
	gt.False(t, slices.Contains(result.Tags, "yellow"))
	gt.True(t, slices.Contains(result.Tags, "sad"))
	gt.False(t, slices.Contains(result.Tags, "angry"))
}

func TestAnalyzeUsesExpansionAndElements(t *testing.T) {
	tg := tagger.New()
	result := tg.Analyze("a castle", "a castle in watercolor under a crimson sky", &model.Elements{
		Subject: "Castle",
		Setting: "unspecified",
	})

	gt.True(t, slices.Contains(result.Styles, "watercolor"))
	gt.True(t, slices.Contains(result.Tags, "castle"))
	gt.True(t, slices.Contains(result.Tags, "crimson"))
	gt.False(t, slices.Contains(result.Tags, "unspecified"))
	gt.True(t, slices.IsSorted(result.Tags))
}

func TestAnalyzeDeterministic(t *testing.T) {
	tg := tagger.New()
	a := tg.Analyze("a futuristic robot in a neon city", "cyberpunk style", nil)
	b := tg.Analyze("a futuristic robot in a neon city", "cyberpunk style", nil)
	gt.Equal(t, a, b)
}

func TestSuggestTagsAndCategorize(t *testing.T) {
	tg := tagger.New()
	gt.A(t, tg.SuggestTags("a red dragon castle in watercolor", 2)).Length(2)
	gt.Equal(t, tg.Categorize("a chocolate cake dessert"), "food")
	gt.Equal(t, tg.Categorize("nothing here"), "")
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	policy := `package tagging

add contains "legendary" if {
	"fantasy" in input.tags
}

remove contains "landscape"

primary_category := "fantasy" if {
	"fantasy" in input.categories
}
`
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "tagging.rego"), []byte(policy), 0o644))

	p, err := tagger.LoadPolicy(ctx, dir)
	gt.NoError(t, err)
	gt.V(t, p).NotNil()

	base := tagger.New().Analyze("a glowing dragon on a cliff at sunset", "", nil)
	result, err := p.Apply(ctx, "a glowing dragon on a cliff at sunset", "", base)
	gt.NoError(t, err)

	gt.True(t, slices.Contains(result.Tags, "legendary"))
	gt.False(t, slices.Contains(result.Tags, "landscape"))
	gt.Equal(t, result.PrimaryCategory, "fantasy")
	// input untouched
	gt.True(t, slices.Contains(base.Tags, "landscape"))
	gt.Equal(t, base.PrimaryCategory, "landscape")
}

func TestLoadPolicyEmptyDir(t *testing.T) {
	p, err := tagger.LoadPolicy(context.Background(), t.TempDir())
	gt.NoError(t, err)
	gt.V(t, p).Nil()

	// nil policy passes tagging through
	in := &model.Tagging{Tags: []string{"a"}}
	out, err := p.Apply(context.Background(), "", "", in)
	gt.NoError(t, err)
	gt.Equal(t, out, in)
}
