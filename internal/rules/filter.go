package rules

import (
	"fmt"
	"regexp"

	"github.com/LJTian/HeadlineHub/internal/config"
)

// Fields 是规则判断需要的 headline 字段
type Fields struct {
	SourceName  string
	Description string
	Link        string
	Photo       string
}

type customMatcher struct {
	onSource bool
	include  bool
	re       *regexp.Regexp
}

// SourceFilter 是某个来源编译后的包含/排除规则
type SourceFilter struct {
	defaultInclude bool
	matchers       []customMatcher
}

func NewSourceFilter(src config.Source) (*SourceFilter, error) {
	f := &SourceFilter{
		defaultInclude: src.Rules.Default != config.DefaultPolicyExclude,
		matchers:       make([]customMatcher, 0, len(src.Rules.Custom)),
	}
	for i, rule := range src.Rules.Custom {
		re, err := compilePattern(rule.Contains)
		if err != nil {
			return nil, fmt.Errorf("rules: source %s rule #%d: %w", src.Name(), i, err)
		}
		f.matchers = append(f.matchers, customMatcher{
			onSource: rule.Where == "source" || rule.Where == "source_name",
			include:  rule.Action == config.ActionForceInclude,
			re:       re,
		})
	}
	return f, nil
}

// ShouldInclude 先按默认策略，再逐条应用自定义规则（最后命中的生效），最后应用强制规则
func (f *SourceFilter) ShouldInclude(h Fields) bool {
	include := f.defaultInclude

	for _, m := range f.matchers {
		target := h.Description
		if m.onSource {
			target = h.SourceName
		}
		if m.re.MatchString(target) {
			include = m.include
		}
	}

	// 强制规则：缺少正文、链接或图片的一律排除，自定义规则无法覆盖
	if h.Description == "" || h.Link == "" || h.Photo == "" {
		return false
	}
	return include
}
