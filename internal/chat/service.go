// internal/chat/service.go
package chat

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/common/nlp"
	"marketplace-chat/internal/common/observability"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
	"marketplace-chat/internal/search"
)

const (
	DefaultLimit        = 10
	RecommendationLimit = 5
	MaxLimit            = 50
)

// MessageRecorder persists or forwards chat messages. The service never
// waits on it and ignores its failures apart from logging.
type MessageRecorder interface {
	Record(ctx context.Context, msg models.ChatMessage) error
}

type Config struct {
	DefaultLimit        int
	RecommendationLimit int
	MaxLimit            int
	RecordTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.RecommendationLimit <= 0 {
		c.RecommendationLimit = RecommendationLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = MaxLimit
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = 2 * time.Second
	}
	return c
}

type Request struct {
	SessionID string      `json:"sessionId"`
	UserID    string      `json:"userId,omitempty"`
	Text      string      `json:"message"`
	NLP       *nlp.Result `json:"nlp,omitempty"`
}

type Metadata struct {
	RequestID        string                  `json:"requestId"`
	Intent           string                  `json:"intent,omitempty"`
	IntentSource     string                  `json:"intentSource,omitempty"`
	Confidence       float64                 `json:"confidence,omitempty"`
	Entities         map[string]interface{}  `json:"entities,omitempty"`
	Query            string                  `json:"query,omitempty"`
	Filters          *models.SearchFilters   `json:"filters,omitempty"`
	CategoryName     string                  `json:"categoryName,omitempty"`
	Results          []models.ProductSummary `json:"results"`
	TotalCount       int                     `json:"totalCount"`
	Limit            int                     `json:"limit,omitempty"`
	Offset           int                     `json:"offset"`
	FallbackType     string                  `json:"fallbackType,omitempty"`
	ValidationErrors []string                `json:"validationErrors,omitempty"`
	Categories       []models.CategoryCount  `json:"categories,omitempty"`
	Error            string                  `json:"error,omitempty"`
}

type Result struct {
	Reply       string   `json:"reply"`
	Suggestions []string `json:"suggestions,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Service is the chat entry point. Handle is safe for concurrent use.
type Service struct {
	parser   *nlu.Parser
	searcher *search.Searcher
	recorder MessageRecorder
	obs      *observability.Observability
	config   Config
	logger   logger.Logger

	pending sync.WaitGroup
	now     func() time.Time
}

func NewService(parser *nlu.Parser, searcher *search.Searcher, recorder MessageRecorder, obs *observability.Observability, config Config, log logger.Logger) *Service {
	return &Service{
		parser:   parser,
		searcher: searcher,
		recorder: recorder,
		obs:      obs,
		config:   config.withDefaults(),
		logger:   logger.ForComponent(log, "chat-service"),
		now:      time.Now,
	}
}

// Handle answers one chat message. It never returns an error: unexpected
// failures become an apology reply with metadata.error set.
func (s *Service) Handle(ctx context.Context, req Request) (result Result) {
	start := s.now()
	requestID := uuid.NewString()
	log := s.logger.With(map[string]interface{}{
		"requestId": requestID,
		"sessionId": req.SessionID,
	})

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewChatPipelineFailedError(fmt.Errorf("panic: %v", r))
			metrics.ChatErrorsTotal.WithLabelValues("handle").Inc()
			log.Error("chat pipeline failed", map[string]interface{}{
				"error": err.Error(),
				"stack": string(debug.Stack()),
			})
			result = Result{
				Reply:    genericErrorReply,
				Metadata: Metadata{RequestID: requestID, Results: []models.ProductSummary{}, Error: err.Message},
			}
		}
		s.record(req, result)
	}()

	result = s.handle(ctx, req, requestID)

	intent := result.Metadata.Intent
	metrics.ChatRequestsTotal.WithLabelValues(intent, result.Metadata.IntentSource).Inc()
	metrics.ChatRequestDuration.WithLabelValues(intent).Observe(time.Since(start).Seconds())
	s.obs.RecordChat(ctx, intent, result.Metadata.FallbackType, time.Since(start))

	log.Info("chat message handled", map[string]interface{}{
		"intent":       intent,
		"source":       result.Metadata.IntentSource,
		"results":      len(result.Metadata.Results),
		"totalCount":   result.Metadata.TotalCount,
		"fallbackType": result.Metadata.FallbackType,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return result
}

func (s *Service) handle(ctx context.Context, req Request, requestID string) Result {
	q := s.parser.Parse(ctx, req.Text, req.NLP)

	meta := Metadata{
		RequestID:    requestID,
		Intent:       string(q.Intent.Name),
		IntentSource: string(q.Intent.Source),
		Confidence:   q.Intent.Confidence,
		Entities:     q.EntityMap(),
		Results:      []models.ProductSummary{},
	}

	switch q.Intent.Name {
	case nlu.IntentGreeting:
		return s.result(greetingReply(), meta)
	case nlu.IntentHelp:
		cats := s.searcher.Categories(ctx)
		meta.Categories = cats
		return s.result(helpReply(cats), meta)
	}

	if errs := q.Entities.Validate(); len(errs) > 0 {
		meta.ValidationErrors = errs
		q.Entities.MinPrice = nil
		q.Entities.MaxPrice = nil
	}

	limit := s.limitFor(q)
	initial, order := s.searcher.Resolve(q)
	outcome := s.searcher.Run(ctx, q, models.ProductQuery{Filters: initial, OrderBy: order, Limit: limit})

	// not-found replies describe what the user asked for, not the last tier
	filters := outcome.Query.Filters
	if outcome.Page.Empty() {
		filters = initial
	}
	categoryName := s.searcher.CategoryName(filters)

	meta.Query = filters.Term()
	meta.Filters = &filters
	meta.CategoryName = categoryName
	meta.Limit = limit
	meta.Offset = outcome.Query.Offset
	meta.TotalCount = outcome.Page.Total
	meta.FallbackType = string(outcome.FallbackTier)
	if len(outcome.Page.Products) > 0 {
		meta.Results = outcome.Page.Products
	}

	summary := Summary{
		ResultCount:  len(outcome.Page.Products),
		TotalCount:   outcome.Page.Total,
		Filters:      filters,
		CategoryName: categoryName,
		FallbackTier: outcome.FallbackTier,
		Intent:       q.Intent.Name,
	}

	switch q.Intent.Name {
	case nlu.IntentAskPrice:
		return s.result(priceReply(outcome.Page.Products, summary), meta)
	case nlu.IntentItemDetails:
		return s.result(detailsReply(outcome.Page.Products, summary), meta)
	default:
		return s.result(Compose(summary), meta)
	}
}

func (s *Service) result(r Reply, meta Metadata) Result {
	return Result{Reply: r.Text, Suggestions: r.Suggestions, Metadata: meta}
}

func (s *Service) limitFor(q nlu.ParsedQuery) int {
	limit := q.Entities.Limit
	if limit <= 0 {
		switch q.Intent.Name {
		case nlu.IntentItemDetails:
			limit = 1
		case nlu.IntentGetRecommendations:
			limit = s.config.RecommendationLimit
		default:
			limit = s.config.DefaultLimit
		}
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit
}

// record hands the user message and the reply to the recorder in the
// background.
func (s *Service) record(req Request, res Result) {
	if s.recorder == nil || strings.TrimSpace(req.SessionID) == "" {
		return
	}

	now := s.now().UTC()
	msgs := []models.ChatMessage{
		{
			EventID:   uuid.NewString(),
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Role:      models.ChatRoleUser,
			Content:   req.Text,
			Intent:    res.Metadata.Intent,
			CreatedAt: now,
		},
		{
			EventID:   uuid.NewString(),
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Role:      models.ChatRoleBot,
			Content:   res.Reply,
			Intent:    res.Metadata.Intent,
			Metadata: map[string]interface{}{
				"requestId":    res.Metadata.RequestID,
				"totalCount":   res.Metadata.TotalCount,
				"fallbackType": res.Metadata.FallbackType,
			},
			CreatedAt: now,
		},
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RecordTimeout)
		defer cancel()

		for _, msg := range msgs {
			if err := s.recorder.Record(ctx, msg); err != nil {
				s.logger.Warn("failed to record chat message", map[string]interface{}{
					"sessionId": msg.SessionID,
					"role":      msg.Role,
					"error":     err.Error(),
				})
				return
			}
		}
	}()
}

// Drain waits for background recording to finish.
func (s *Service) Drain() {
	s.pending.Wait()
}
