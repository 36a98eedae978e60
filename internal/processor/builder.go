package processor

import (
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/rules"
)

// Builder 把原始帖子转换为 headline：清洗、打分、分类、过滤
type Builder struct {
	classifier *rules.Classifier
	scorer     Scorer
}

func NewBuilder(classifier *rules.Classifier, scorer Scorer) *Builder {
	if scorer == nil {
		scorer = ReverseAge{}
	}
	return &Builder{classifier: classifier, scorer: scorer}
}

// Build 是纯函数；被规则排除时返回 false，这不是错误
func (b *Builder) Build(post collector.RawPost, filter *rules.SourceFilter, now time.Time) (Headline, bool) {
	h := Headline{
		SourceName:         post.AuthorName,
		SourcePhoto:        post.AuthorAvatar,
		ArticlePhoto:       post.MediaURL,
		ArticleDescription: cleanDescription(post.Text),
		Date:               post.CreatedAt,
	}
	if len(post.URLs) > 0 {
		h.ArticleLink = post.URLs[0]
	}

	published, ok := parseCreatedAt(post.CreatedAt)
	if ok {
		h.Timestamp = published.UnixMilli()
	}
	h.Score = b.scorer.Score(published, ok, post.RetweetCount, post.FavoriteCount, now)

	cls := b.classifier.Classify(h.ArticleDescription)
	h.Category = cls.Category
	h.CategoryBadge = cls.Badge
	h.Tags = cls.Tags

	if !filter.ShouldInclude(rules.Fields{
		SourceName:  h.SourceName,
		Description: h.ArticleDescription,
		Link:        h.ArticleLink,
		Photo:       h.ArticlePhoto,
	}) {
		return Headline{}, false
	}

	h.ID = hashKey(h.SourceName, h.Date, h.ArticleDescription)
	return h, true
}
