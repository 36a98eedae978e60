package rules

import (
	"testing"

	"github.com/LJTian/HeadlineHub/internal/config"
)

func TestClassifyLastMatchWinsAndAccumulatesTags(t *testing.T) {
	c, err := NewClassifier([]config.CategoryRule{
		{Category: "Tech", SearchPattern: "golang", Badge: "tech_badge"},
		{Category: "Sport", SearchPattern: "football", Badge: "sport_badge"},
		{Category: "Tech", SearchPattern: "compiler", Badge: "tech_badge"},
	})
	if err != nil {
		t.Fatalf("NewClassifier error: %v", err)
	}

	got := c.Classify("GoLang compiler wins FOOTBALL match")
	if got.Category != "Tech" || got.Badge != "tech_badge" {
		t.Fatalf("category/badge = %q/%q, want Tech/tech_badge", got.Category, got.Badge)
	}
	if got.Tags != "Tech,Sport" {
		t.Fatalf("tags = %q, want %q", got.Tags, "Tech,Sport")
	}

	got = c.Classify("football and golang")
	if got.Category != "Sport" {
		t.Fatalf("category = %q, want Sport (declared after Tech)", got.Category)
	}
	if got.Tags != "Tech,Sport" {
		t.Fatalf("tags = %q, want declaration order %q", got.Tags, "Tech,Sport")
	}
}

func TestClassifyDefaultsToNews(t *testing.T) {
	c, err := NewClassifier([]config.CategoryRule{{Category: "Tech", SearchPattern: "golang", Badge: "b"}})
	if err != nil {
		t.Fatalf("NewClassifier error: %v", err)
	}
	got := c.Classify("weather is nice")
	if got != (Classification{Category: DefaultCategory, Badge: DefaultBadge, Tags: ""}) {
		t.Fatalf("unexpected default classification: %+v", got)
	}
}

func TestNewClassifierRejectsInvalidPattern(t *testing.T) {
	if _, err := NewClassifier([]config.CategoryRule{{Category: "Bad", SearchPattern: "(["}}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func complete(desc, source string) Fields {
	return Fields{
		SourceName:  source,
		Description: desc,
		Link:        "https://example.com/a",
		Photo:       "https://example.com/a.jpg",
	}
}

func TestShouldIncludeLastMatchingRuleWins(t *testing.T) {
	src := config.Source{
		Owner: "o",
		Slug:  "s",
		Rules: config.SourceRules{
			Default: config.DefaultPolicyExclude,
			Custom: []config.CustomRule{
				{Where: "article_description", Contains: "election", Action: config.ActionForceInclude},
				{Where: "article_description", Contains: "rumou?r", Action: config.ActionForceExclude},
			},
		},
	}
	f, err := NewSourceFilter(src)
	if err != nil {
		t.Fatalf("NewSourceFilter error: %v", err)
	}

	if f.ShouldInclude(complete("Weather update", "Desk")) {
		t.Fatalf("exclude all default should drop unmatched post")
	}
	if !f.ShouldInclude(complete("Election results are in", "Desk")) {
		t.Fatalf("force include should override exclude all")
	}
	if f.ShouldInclude(complete("Election rumour spreads", "Desk")) {
		t.Fatalf("later force exclude should override earlier force include")
	}
}

func TestShouldIncludeSourceSelector(t *testing.T) {
	f, err := NewSourceFilter(config.Source{
		Owner: "o",
		Slug:  "s",
		Rules: config.SourceRules{
			Default: config.DefaultPolicyInclude,
			Custom: []config.CustomRule{
				{Where: "source", Contains: "tabloid", Action: config.ActionForceExclude},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewSourceFilter error: %v", err)
	}

	if f.ShouldInclude(complete("Big news", "The Tabloid Daily")) {
		t.Fatalf("rule on source should match source_name")
	}
	// 正文包含关键词，但规则只看 source_name
	if !f.ShouldInclude(complete("tabloid reports", "Herald")) {
		t.Fatalf("rule on source should not look at description")
	}
}

func TestShouldIncludeMandatoryRulesCannotBeOverridden(t *testing.T) {
	f, err := NewSourceFilter(config.Source{
		Owner: "o",
		Slug:  "s",
		Rules: config.SourceRules{
			Default: config.DefaultPolicyInclude,
			Custom:  []config.CustomRule{{Where: "source", Contains: ".*", Action: config.ActionForceInclude}},
		},
	})
	if err != nil {
		t.Fatalf("NewSourceFilter error: %v", err)
	}

	cases := []Fields{
		{SourceName: "x", Description: "", Link: "l", Photo: "p"},
		{SourceName: "x", Description: "d", Link: "", Photo: "p"},
		{SourceName: "x", Description: "d", Link: "l", Photo: ""},
	}
	for _, c := range cases {
		if f.ShouldInclude(c) {
			t.Fatalf("mandatory rules should exclude %+v", c)
		}
	}
}
