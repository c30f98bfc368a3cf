// internal/nlu/intent.go
package nlu

import "regexp"

const (
	regexMatchConfidence   = 0.7
	keywordOnlyConfidence  = 0.5
	ruleOverrideConfidence = 0.95
)

type intentRule struct {
	intent   IntentName
	patterns []*regexp.Regexp
}

func (r intentRule) matches(msg string) bool {
	for _, p := range r.patterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return false
}

// classificationRules is evaluated top to bottom; the first rule with any
// matching pattern decides the intent.
var classificationRules = []intentRule{
	{IntentSearchItems, []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\s)(?:tìm|kiếm|mua|cần mua|muốn mua|có bán)(?:$|\s)`),
		regexp.MustCompile(`\b(?:find|search|looking for|look for|show me|buy|browse|need|want)\b`),
	}},
	{IntentGetRecommendations, []*regexp.Regexp{
		regexp.MustCompile(`gợi ý|đề xuất|nên mua`),
		regexp.MustCompile(`\b(?:recommend\w*|suggest\w*)\b|what should i (?:buy|get)`),
	}},
	{IntentItemDetails, []*regexp.Regexp{
		regexp.MustCompile(`chi tiết|thông tin (?:về|sản phẩm)`),
		regexp.MustCompile(`\b(?:details?|specs?|specifications)\b|tell me (?:more )?about|more info`),
	}},
	{IntentHelp, []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\s)(?:giúp|hướng dẫn|trợ giúp)(?:$|\s)`),
		regexp.MustCompile(`\bhelp\b|how (?:do|does|to) (?:i )?(?:use|work)`),
	}},
}

// overrideRules re-tag high-value phrasings after any upstream
// classification, in priority order.
var overrideRules = []intentRule{
	{IntentAskPrice, []*regexp.Regexp{
		regexp.MustCompile(`bao nhiêu tiền|giá bao nhiêu|giá (?:của )?.{1,40} (?:là )?bao nhiêu|giá thế nào`),
		regexp.MustCompile(`\bhow much (?:is|are|does|do|for)\b|what(?:'s| is) the price|\bprice of\b`),
	}},
	{IntentHelp, []*regexp.Regexp{
		regexp.MustCompile(`^(?:help|help me|giúp|giúp tôi|giúp mình|trợ giúp|hướng dẫn)[\s?!.]*$`),
		regexp.MustCompile(`what can you do|bạn (?:có thể )?làm (?:được )?gì|how (?:do i|to) use this`),
	}},
	{IntentGreeting, []*regexp.Regexp{
		regexp.MustCompile(`^(?:hi|hello|hey|hi there|hello there|xin chào|chào|chào bạn|chào shop|good (?:morning|afternoon|evening))[\s?!.]*$`),
	}},
	{IntentGetRecommendations, []*regexp.Regexp{
		regexp.MustCompile(`gợi ý|đề xuất|nên mua gì`),
		regexp.MustCompile(`\brecommend\w*\b|\bsuggest\w*\b|what should i buy`),
	}},
}

// Classifier is the deterministic intent layer used when the NLP service
// cannot answer, plus the override layer that always runs last.
type Classifier struct {
	rules     []intentRule
	overrides []intentRule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: classificationRules, overrides: overrideRules}
}

// Classify runs the rule table. With no rule match a message that still
// carried keywords is treated as a search.
func (c *Classifier) Classify(message string, keywords []string) ParsedIntent {
	msg := Normalize(message)
	for _, rule := range c.rules {
		if rule.matches(msg) {
			return ParsedIntent{Name: rule.intent, Confidence: regexMatchConfidence, Source: SourceRegexFallback}
		}
	}
	if len(keywords) > 0 {
		return ParsedIntent{Name: IntentSearchItems, Confidence: keywordOnlyConfidence, Source: SourceRegexFallback}
	}
	return ParsedIntent{Name: IntentUnknown, Source: SourceRegexFallback}
}

// ApplyOverrides returns the first matching override, or intent unchanged.
func (c *Classifier) ApplyOverrides(message string, intent ParsedIntent) ParsedIntent {
	msg := Normalize(message)
	for _, rule := range c.overrides {
		if rule.matches(msg) {
			return ParsedIntent{Name: rule.intent, Confidence: ruleOverrideConfidence, Source: SourceRuleBased}
		}
	}
	return intent
}
