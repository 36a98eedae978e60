package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LJTian/HeadlineHub/internal/config"
)

const (
	DefaultCategory = "News"
	DefaultBadge    = "default_badge"
)

// Classification 是分类结果，Tags 为逗号拼接、按首次命中顺序去重的分类名
type Classification struct {
	Category string
	Badge    string
	Tags     string
}

type categoryMatcher struct {
	rule config.CategoryRule
	re   *regexp.Regexp
}

// Classifier 持有预编译的分类规则
type Classifier struct {
	matchers []categoryMatcher
}

func NewClassifier(categories []config.CategoryRule) (*Classifier, error) {
	c := &Classifier{matchers: make([]categoryMatcher, 0, len(categories))}
	for _, rule := range categories {
		re, err := compilePattern(rule.SearchPattern)
		if err != nil {
			return nil, fmt.Errorf("rules: category %q: %w", rule.Category, err)
		}
		c.matchers = append(c.matchers, categoryMatcher{rule: rule, re: re})
	}
	return c, nil
}

// Classify 依次匹配所有规则：后命中的覆盖分类与徽章，标签累积
func (c *Classifier) Classify(description string) Classification {
	out := Classification{Category: DefaultCategory, Badge: DefaultBadge}

	var tags []string
	for _, m := range c.matchers {
		if !m.re.MatchString(description) {
			continue
		}
		out.Category = m.rule.Category
		out.Badge = m.rule.Badge
		if !contains(tags, m.rule.Category) {
			tags = append(tags, m.rule.Category)
		}
	}
	out.Tags = strings.Join(tags, ",")
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// compilePattern 统一按大小写不敏感编译
func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}
