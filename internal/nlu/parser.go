// internal/nlu/parser.go
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/common/nlp"
)

// DefaultNLPTimeout bounds one NLP call, retries included.
const DefaultNLPTimeout = 1200 * time.Millisecond

// NLPService is the external text-understanding collaborator.
type NLPService interface {
	Parse(ctx context.Context, text string) (*nlp.Result, error)
}

type ParserConfig struct {
	Timeout  time.Duration
	UseCache bool
}

// Parser turns one chat message into a ParsedQuery. It asks the NLP service
// first and degrades to the rule-based extractor and classifier whenever
// the service fails, times out or answers with something unusable.
type Parser struct {
	catalog    *Catalog
	extractor  *Extractor
	classifier *Classifier
	service    NLPService
	cache      *ResultCache
	config     ParserConfig
	logger     logger.Logger
}

// NewParser wires a parser. service and cache may be nil; without a service
// every message takes the rule-based path.
func NewParser(catalog *Catalog, service NLPService, cache *ResultCache, config ParserConfig, log logger.Logger) *Parser {
	if config.Timeout <= 0 {
		config.Timeout = DefaultNLPTimeout
	}
	return &Parser{
		catalog:    catalog,
		extractor:  NewExtractor(catalog),
		classifier: NewClassifier(),
		service:    service,
		cache:      cache,
		config:     config,
		logger:     logger.ForComponent(log, "nlu-parser"),
	}
}

func (p *Parser) Catalog() *Catalog { return p.catalog }

func (p *Parser) Extractor() *Extractor { return p.extractor }

// Parse never fails. precomputed, when usable, replaces the NLP call.
func (p *Parser) Parse(ctx context.Context, text string, precomputed *nlp.Result) ParsedQuery {
	res := precomputed
	if !res.Usable() {
		res = p.callService(ctx, text)
	}

	var q ParsedQuery
	if res.Usable() {
		q = p.fromNLP(text, res)
	} else {
		q = p.fromRules(text)
	}
	q.Intent = p.classifier.ApplyOverrides(text, q.Intent)
	return q
}

type serviceOutcome struct {
	result *nlp.Result
	err    error
}

// callService races the NLP call against the configured deadline. A late
// answer lands in a buffered channel nobody reads; only this goroutine
// writes the cache, so a losing call has no side effect.
func (p *Parser) callService(ctx context.Context, text string) *nlp.Result {
	if p.service == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	if p.config.UseCache && p.cache != nil {
		if cached, ok := p.cache.Get(text); ok {
			metrics.NLPCallsTotal.WithLabelValues("cache_hit").Inc()
			return cached
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan serviceOutcome, 1)
	go func() {
		r, err := p.service.Parse(callCtx, text)
		done <- serviceOutcome{result: r, err: err}
	}()

	select {
	case out := <-done:
		metrics.NLPCallDuration.Observe(time.Since(start).Seconds())
		if out.err != nil {
			outcome := "error"
			switch {
			case errors.Is(out.err, nlp.ErrNLPTimeout):
				outcome = "timeout"
			case errors.Is(out.err, nlp.ErrMalformedResponse):
				outcome = "malformed"
			}
			metrics.NLPCallsTotal.WithLabelValues(outcome).Inc()
			p.logger.Warn("nlp service failed, using rule-based parse", map[string]interface{}{
				"error": out.err.Error(),
			})
			return nil
		}
		if !out.result.Usable() {
			metrics.NLPCallsTotal.WithLabelValues("malformed").Inc()
			p.logger.Warn("nlp result has neither intent nor entities, using rule-based parse", nil)
			return nil
		}
		metrics.NLPCallsTotal.WithLabelValues("ok").Inc()
		if p.config.UseCache && p.cache != nil {
			p.cache.Set(text, out.result)
		}
		return out.result
	case <-callCtx.Done():
		metrics.NLPCallDuration.Observe(time.Since(start).Seconds())
		metrics.NLPCallsTotal.WithLabelValues("timeout").Inc()
		p.logger.Warn("nlp service timed out, using rule-based parse", map[string]interface{}{
			"timeout": p.config.Timeout.String(),
		})
		return nil
	}
}

func (p *Parser) fromRules(text string) ParsedQuery {
	entities := p.extractor.Extract(text)
	return ParsedQuery{
		Intent:          p.classifier.Classify(text, entities.Keywords),
		Entities:        entities,
		EntitySource:    SourceRegexFallback,
		OriginalMessage: text,
	}
}

// fromNLP folds the service's labelled entities into the typed view.
// Entities that cannot be interpreted are dropped.
func (p *Parser) fromNLP(text string, res *nlp.Result) ParsedQuery {
	var e Entities
	sawKeywords := false

	for _, ent := range res.Entities {
		switch strings.ToUpper(strings.TrimSpace(ent.Label)) {
		case LabelCategoryID:
			if id, ok := toInt(ent.Value, ent.Text); ok {
				if cat, known := p.catalog.CategoryByID(id); known {
					e.CategoryID = intPtr(cat.ID)
					e.CategoryName = cat.Name
				}
			}
		case LabelCategory:
			if e.CategoryID != nil {
				continue
			}
			if cat, ok := p.catalog.MatchCategory(firstText(ent)); ok {
				e.CategoryID = intPtr(cat.ID)
				e.CategoryName = cat.Name
			}
		case LabelMinPrice:
			if v, ok := p.entityPrice(ent, text); ok {
				e.MinPrice = int64Ptr(v)
			}
		case LabelMaxPrice:
			if v, ok := p.entityPrice(ent, text); ok {
				e.MaxPrice = int64Ptr(v)
			}
		case LabelKeywords:
			sawKeywords = true
			e.Keywords = appendKeywords(e.Keywords, ent)
		case LabelSortBy:
			if order, ok := parseSortOrder(firstText(ent)); ok {
				e.SortBy = order
			}
		case LabelCheapest:
			e.Cheapest = true
		case LabelExpensive:
			e.Expensive = true
		case LabelCondition:
			switch c := Normalize(firstText(ent)); c {
			case ConditionNew, "mới":
				e.Condition = ConditionNew
			case ConditionUsed, "cũ":
				e.Condition = ConditionUsed
			}
		case LabelLimit:
			if n, ok := toInt(ent.Value, ent.Text); ok && n > 0 {
				if n > MaxLimit {
					n = MaxLimit
				}
				e.Limit = n
			}
		case LabelProduct:
			if e.Product == "" {
				e.Product = strings.TrimSpace(firstText(ent))
			}
		}
	}

	if e.SortBy == "" {
		switch {
		case e.Cheapest:
			e.SortBy = SortPriceAsc
		case e.Expensive:
			e.SortBy = SortPriceDesc
		}
	}
	// category words are stripped from keywords, so an untagged one would
	// otherwise be lost
	if e.CategoryID == nil {
		if cat, ok := p.catalog.FindCategoryInText(Normalize(text)); ok {
			e.CategoryID = intPtr(cat.ID)
			e.CategoryName = cat.Name
		}
	}
	if !sawKeywords {
		e.Keywords = p.extractor.ExtractKeywords(text)
	}
	p.extractor.resolveBareTerm(&e)

	intent := ParsedIntent{Source: SourceNLP}
	if res.Intent != nil && res.Intent.Name != "" {
		intent.Name = ParseIntentName(res.Intent.Name)
		intent.Confidence = clamp01(res.Intent.Confidence)
	} else {
		fallback := p.classifier.Classify(text, e.Keywords)
		intent.Name = fallback.Name
		intent.Confidence = fallback.Confidence
	}

	return ParsedQuery{
		Intent:          intent,
		Entities:        e,
		EntitySource:    SourceNLP,
		NounChunks:      append([]string(nil), res.NounChunks...),
		OriginalMessage: text,
	}
}

// entityPrice runs an NLP price through the unit resolver so "500" next to
// "k" in the message still reads as 500000.
func (p *Parser) entityPrice(ent nlp.Entity, message string) (int64, bool) {
	if f, ok := toFloat(ent.Value); ok {
		if f < 0 {
			return 0, false
		}
		return ResolvePrice(strconv.FormatFloat(f, 'f', -1, 64), message)
	}
	return ResolvePrice(strings.ReplaceAll(firstText(ent), " ", ""), message)
}

func firstText(ent nlp.Entity) string {
	if s, ok := ent.Value.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return ent.Text
}

func appendKeywords(dst []string, ent nlp.Entity) []string {
	var words []string
	switch v := ent.Value.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				words = append(words, strings.Fields(Normalize(s))...)
			}
		}
	case []string:
		for _, s := range v {
			words = append(words, strings.Fields(Normalize(s))...)
		}
	case string:
		words = strings.Fields(Normalize(v))
	}
	if len(words) == 0 {
		words = strings.Fields(Normalize(ent.Text))
	}

	seen := make(map[string]struct{}, len(dst))
	for _, w := range dst {
		seen[w] = struct{}{}
	}
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		dst = append(dst, w)
	}
	return dst
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v interface{}, text string) (int, bool) {
	if f, ok := toFloat(v); ok {
		return int(f), true
	}
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		s = text
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// String renders the query for logs.
func (q ParsedQuery) String() string {
	return fmt.Sprintf("intent=%s(%s) term=%q entities=%d", q.Intent.Name, q.Intent.Source, q.Entities.SearchTerm(), len(q.Entities.List()))
}
