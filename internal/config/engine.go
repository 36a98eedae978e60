package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 排序模式
type SortMode string

const (
	SortTopScore SortMode = "top_score"
	SortLatest   SortMode = "latest"
	SortNone     SortMode = "none"
)

// 打分策略
type ScoringPolicy string

const (
	ScoringReverseAge ScoringPolicy = "reverse_age"
	ScoringAgeForward ScoringPolicy = "age_forward"
)

const (
	DefaultPolicyInclude = "include all"
	DefaultPolicyExclude = "exclude all"

	ActionForceInclude = "force include"
	ActionForceExclude = "force exclude"

	DefaultCap = 20
)

// Engine 是规则引擎配置文件（headlines.yaml / headlines.json）的内容
type Engine struct {
	Sources    []Source       `yaml:"sources" json:"sources"`
	Categories []CategoryRule `yaml:"categories" json:"categories"`
	Sort       SortMode       `yaml:"sort" json:"sort"`
	Cap        int            `yaml:"cap" json:"cap"`
	Scoring    ScoringPolicy  `yaml:"scoring" json:"scoring"`
}

// Source 描述一个列表来源，例如某个账号下的某个 list
type Source struct {
	Owner string      `yaml:"owner_screen_name" json:"owner_screen_name"`
	Slug  string      `yaml:"slug" json:"slug"`
	Rules SourceRules `yaml:"rules" json:"rules"`
}

// Name 用于日志与告警
func (s Source) Name() string {
	return s.Owner + "/" + s.Slug
}

type SourceRules struct {
	Default string       `yaml:"default" json:"default"`
	Custom  []CustomRule `yaml:"custom" json:"custom"`
}

// CustomRule 按来源的包含/排除规则；where 为 "source" 时匹配 source_name，否则匹配正文
type CustomRule struct {
	Where    string `yaml:"where" json:"where"`
	Contains string `yaml:"contains" json:"contains"`
	Action   string `yaml:"action" json:"action"`
}

// CategoryRule 分类规则，按声明顺序匹配，后匹配的覆盖前面的
type CategoryRule struct {
	Category      string `yaml:"category" json:"category"`
	SearchPattern string `yaml:"search_pattern" json:"search_pattern"`
	Badge         string `yaml:"badge" json:"badge"`
}

// LoadEngine 读取规则文件。YAML 是 JSON 的超集，旧的 headlines.json 可以直接使用。
func LoadEngine(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read engine file: %w", err)
	}
	return ParseEngine(data)
}

func ParseEngine(data []byte) (*Engine, error) {
	var e Engine
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("config: parse engine file: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate 补默认值并校验枚举字段；正则的合法性在 rules 包编译时校验
func (e *Engine) Validate() error {
	if len(e.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}

	switch strings.ToLower(strings.TrimSpace(string(e.Sort))) {
	case "", "top_score", "top20", "top":
		e.Sort = SortTopScore
	case "latest", "latest20":
		e.Sort = SortLatest
	case "none":
		e.Sort = SortNone
	default:
		return fmt.Errorf("config: unknown sort mode %q", e.Sort)
	}

	switch strings.ToLower(strings.TrimSpace(string(e.Scoring))) {
	case "", string(ScoringReverseAge):
		e.Scoring = ScoringReverseAge
	case string(ScoringAgeForward):
		e.Scoring = ScoringAgeForward
	default:
		return fmt.Errorf("config: unknown scoring policy %q", e.Scoring)
	}

	if e.Cap < 0 {
		return fmt.Errorf("config: cap must not be negative, got %d", e.Cap)
	}
	if e.Cap == 0 {
		e.Cap = DefaultCap
	}

	for i := range e.Sources {
		src := &e.Sources[i]
		if src.Owner == "" || src.Slug == "" {
			return fmt.Errorf("config: source #%d needs owner_screen_name and slug", i)
		}
		switch src.Rules.Default {
		case "":
			src.Rules.Default = DefaultPolicyInclude
		case DefaultPolicyInclude, DefaultPolicyExclude:
		default:
			return fmt.Errorf("config: source %s: unknown default %q", src.Name(), src.Rules.Default)
		}
		for j, r := range src.Rules.Custom {
			if r.Action != ActionForceInclude && r.Action != ActionForceExclude {
				return fmt.Errorf("config: source %s rule #%d: unknown action %q", src.Name(), j, r.Action)
			}
		}
	}

	for i, c := range e.Categories {
		if c.Category == "" {
			return fmt.Errorf("config: category rule #%d has no name", i)
		}
	}
	return nil
}

// CategoryNames 返回所有分类名（默认的 News 在最前），用于预先创建空分类
func (e *Engine) CategoryNames(defaultCategory string) []string {
	names := []string{defaultCategory}
	seen := map[string]struct{}{defaultCategory: {}}
	for _, c := range e.Categories {
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		names = append(names, c.Category)
	}
	return names
}
