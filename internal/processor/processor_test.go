package processor

import (
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/rules"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestHashKeyDeterministicAndDistinct(t *testing.T) {
	h1a := hashKey("desk", "a")
	h1b := hashKey("desk", "a")
	h2 := hashKey("deska", "")

	if h1a != h1b {
		t.Fatalf("hashKey not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashKey should separate parts: %q", h1a)
	}
}

func TestCleanDescription(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Markets rally https://t.co/abc", "Markets rally"},
		{"Salt &amp; pepper ftp://files.example.com/x and http://a.b", "Salt and pepper  and"},
		{"https://only.link/here", ""},
		{"  plain text  ", "plain text"},
	}
	for _, c := range cases {
		if got := cleanDescription(c.in); got != c.want {
			t.Fatalf("cleanDescription(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseCreatedAtFormats(t *testing.T) {
	want := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	inputs := []string{
		"Wed Oct 14 10:00:00 +0000 2026",
		"2026-10-14T10:00:00Z",
		"Oct 14, 2026 · 10:00 AM UTC",
	}
	for _, in := range inputs {
		got, ok := parseCreatedAt(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("parseCreatedAt(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := parseCreatedAt("yesterday-ish"); ok {
		t.Fatalf("garbage should not parse")
	}
}

func TestReverseAgeScore(t *testing.T) {
	s := ReverseAge{}
	if got := s.Score(testNow, true, 0, 0, testNow); got != 200 {
		t.Fatalf("fresh post score = %d, want 200", got)
	}
	old := testNow.Add(-250 * time.Hour)
	if got := s.Score(old, true, 0, 0, testNow); got != 0 {
		t.Fatalf("250h old post score = %d, want 0", got)
	}
	// 25/10 + 12/5 = 2.5 + 2.4 = 4.9 -> 4
	if got := s.Score(old, true, 25, 12, testNow); got != 4 {
		t.Fatalf("250h old engaged post score = %d, want 4", got)
	}
	// 10.5 小时按 10 小时计
	if got := s.Score(testNow.Add(-630*time.Minute), true, 0, 0, testNow); got != 190 {
		t.Fatalf("10.5h old post score = %d, want 190", got)
	}
	// 时间无法解析时只算互动分
	if got := s.Score(time.Time{}, false, 10, 5, testNow); got != 2 {
		t.Fatalf("unparsable timestamp score = %d, want 2", got)
	}
	// 未来时间按 0 小时
	if got := s.Score(testNow.Add(3*time.Hour), true, 0, 0, testNow); got != 200 {
		t.Fatalf("future post score = %d, want 200", got)
	}
}

func TestAgeForwardScore(t *testing.T) {
	s := AgeForward{}
	// 5 + 3*1.5 + 2 = 11.5 -> 11
	if got := s.Score(testNow.Add(-5*time.Hour), true, 3, 2, testNow); got != 11 {
		t.Fatalf("age forward score = %d, want 11", got)
	}
	if got := s.Score(time.Time{}, false, 2, 1, testNow); got != 4 {
		t.Fatalf("unparsable timestamp score = %d, want 4", got)
	}
}

func TestScorerFor(t *testing.T) {
	if s, err := ScorerFor(config.ScoringAgeForward); err != nil {
		t.Fatalf("ScorerFor error: %v", err)
	} else if _, ok := s.(AgeForward); !ok {
		t.Fatalf("expected AgeForward, got %T", s)
	}
	if _, err := ScorerFor("weird"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	c, err := rules.NewClassifier([]config.CategoryRule{
		{Category: "Tech", SearchPattern: "golang", Badge: "tech_badge"},
		{Category: "Sport", SearchPattern: "football", Badge: "sport_badge"},
	})
	if err != nil {
		t.Fatalf("NewClassifier error: %v", err)
	}
	return NewBuilder(c, ReverseAge{})
}

func newIncludeAll(t *testing.T) *rules.SourceFilter {
	t.Helper()
	f, err := rules.NewSourceFilter(config.Source{Owner: "o", Slug: "s", Rules: config.SourceRules{Default: config.DefaultPolicyInclude}})
	if err != nil {
		t.Fatalf("NewSourceFilter error: %v", err)
	}
	return f
}

func post(text string) collector.RawPost {
	return collector.RawPost{
		AuthorName:    "Desk",
		AuthorAvatar:  "https://img/avatar.png",
		URLs:          []string{"https://example.com/1", "https://example.com/2"},
		MediaURL:      "https://img/1.jpg",
		Text:          text,
		CreatedAt:     "Thu Oct 15 10:00:00 +0000 2026",
		RetweetCount:  20,
		FavoriteCount: 10,
	}
}

func TestBuildHeadline(t *testing.T) {
	b := newTestBuilder(t)
	h, ok := b.Build(post("Golang 2 ships &amp; football https://t.co/x"), newIncludeAll(t), testNow)
	if !ok {
		t.Fatalf("post should be included")
	}
	if h.ArticleDescription != "Golang 2 ships and football" {
		t.Fatalf("description = %q", h.ArticleDescription)
	}
	if h.ArticleLink != "https://example.com/1" || h.ArticlePhoto != "https://img/1.jpg" {
		t.Fatalf("link/photo = %q/%q", h.ArticleLink, h.ArticlePhoto)
	}
	if h.Timestamp != time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC).UnixMilli() {
		t.Fatalf("timestamp = %d", h.Timestamp)
	}
	// 200 - 2 + 20/10 + 10/5 = 202
	if h.Score != 202 {
		t.Fatalf("score = %d, want 202", h.Score)
	}
	if h.Category != "Sport" || h.CategoryBadge != "sport_badge" || h.Tags != "Tech,Sport" {
		t.Fatalf("classification = %q/%q/%q", h.Category, h.CategoryBadge, h.Tags)
	}
	if h.ID == "" {
		t.Fatalf("headline id should be set")
	}
}

func TestBuildExcludesIncompletePosts(t *testing.T) {
	b := newTestBuilder(t)
	f := newIncludeAll(t)

	noLink := post("story")
	noLink.URLs = nil
	noPhoto := post("story")
	noPhoto.MediaURL = ""
	onlyURL := post("https://example.com/only")

	for _, p := range []collector.RawPost{noLink, noPhoto, onlyURL, {}} {
		if _, ok := b.Build(p, f, testNow); ok {
			t.Fatalf("incomplete post should be excluded: %+v", p)
		}
	}
}

func TestAggregatorDeduplicatesWithinCategory(t *testing.T) {
	a := NewAggregator(newTestBuilder(t), []string{"Tech", "Sport"}, testNow)
	f := newIncludeAll(t)

	first := post("golang release")
	second := post("golang release")
	second.AuthorName = "Other desk"

	kept := a.Add(f, []collector.RawPost{first, second}, &collector.RateLimit{Remaining: 5, Limit: 10})
	if kept != 2 {
		t.Fatalf("kept = %d, want 2", kept)
	}
	a.Add(f, []collector.RawPost{post("golang release")}, nil)

	global, categories, rl := a.Result()
	if len(global) != 3 {
		t.Fatalf("global list should keep every included post, got %d", len(global))
	}
	tech := categories["Tech"]
	if len(tech) != 1 {
		t.Fatalf("Tech should hold exactly one copy, got %d", len(tech))
	}
	if tech[0].SourceName != "Desk" {
		t.Fatalf("earliest copy should be kept, got %q", tech[0].SourceName)
	}
	// nil 快照不覆盖之前的值
	if rl == nil || rl.Remaining != 5 || rl.Limit != 10 {
		t.Fatalf("rate limit = %+v, want 5/10", rl)
	}
}

func TestAggregatorSeedsCategories(t *testing.T) {
	a := NewAggregator(newTestBuilder(t), []string{"Tech"}, testNow)
	_, categories, rl := a.Result()

	for _, name := range []string{rules.DefaultCategory, "Tech"} {
		list, ok := categories[name]
		if !ok || list == nil || len(list) != 0 {
			t.Fatalf("category %q should be present and empty, got %v (present=%v)", name, list, ok)
		}
	}
	if rl != nil {
		t.Fatalf("rate limit should be unknown before any source")
	}
}

func TestAggregatorLastRateLimitWins(t *testing.T) {
	a := NewAggregator(newTestBuilder(t), nil, testNow)
	f := newIncludeAll(t)
	a.Add(f, nil, &collector.RateLimit{Remaining: 9, Limit: 10})
	a.Add(f, nil, &collector.RateLimit{Remaining: 3, Limit: 10})

	_, _, rl := a.Result()
	if rl == nil || rl.Remaining != 3 {
		t.Fatalf("rate limit = %+v, want remaining 3", rl)
	}
}

func scored(scores ...int) []Headline {
	out := make([]Headline, len(scores))
	for i, s := range scores {
		out[i] = Headline{ID: string(rune('a' + i)), Score: s, Timestamp: int64(i)}
	}
	return out
}

func TestRankTopScoreStable(t *testing.T) {
	in := scored(5, 9, 9)
	out := Rank(in, config.SortTopScore, 20)
	if len(out) != 3 || out[0].ID != "b" || out[1].ID != "c" || out[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", out)
	}

	out = Rank(in, config.SortTopScore, 2)
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("truncation should drop the last element: %+v", out)
	}
	// 入参不应被修改
	if in[0].ID != "a" {
		t.Fatalf("Rank should not reorder its input")
	}
}

func TestRankLatestAndNone(t *testing.T) {
	in := scored(1, 2, 3)
	out := Rank(in, config.SortLatest, 2)
	if len(out) != 2 || out[0].ID != "c" || out[1].ID != "b" {
		t.Fatalf("latest order: %+v", out)
	}

	out = Rank(in, config.SortNone, 1)
	if len(out) != 3 || out[0].ID != "a" {
		t.Fatalf("none should neither sort nor truncate: %+v", out)
	}
}

func TestRankFeedAppliesToEveryCategory(t *testing.T) {
	global, cats := RankFeed(scored(1, 2, 3), map[string][]Headline{
		"News": scored(4, 8),
		"Tech": {},
	}, config.SortTopScore, 1)

	if len(global) != 1 || global[0].Score != 3 {
		t.Fatalf("global = %+v", global)
	}
	if len(cats["News"]) != 1 || cats["News"][0].Score != 8 {
		t.Fatalf("News = %+v", cats["News"])
	}
	if list, ok := cats["Tech"]; !ok || len(list) != 0 {
		t.Fatalf("empty category should survive ranking")
	}
}
