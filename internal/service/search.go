package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

const searchFilterPrompt = `把下面的二手市场搜索请求转换成结构化过滤条件。
严格按照以下格式输出一行（不要任何其他文字）：
FILTER:关键词|最高价格数字|地点
没有价格限制时价格留空，没有地点限制时地点留空。

搜索请求：%s`

const filterTailPrefix = "FILTER:"

// SearchService turns a free-text query into a structured filter over
// active listings. The filter extraction is a best-effort model call:
// when it fails or comes back malformed, the raw query is used as a
// plain keyword and nothing else is constrained.
type SearchService struct {
	gate       *CreditGate
	gen        Generator
	listings   repository.ListingRepository
	cache      repository.ListingCache
	cacheTTL   time.Duration
	searchCost int64
	log        logger.Logger
}

func NewSearchService(
	gate *CreditGate,
	gen Generator,
	listings repository.ListingRepository,
	cache repository.ListingCache,
	cacheTTL time.Duration,
	searchCost int64,
	log logger.Logger,
) *SearchService {
	return &SearchService{
		gate:       gate,
		gen:        gen,
		listings:   listings,
		cache:      cache,
		cacheTTL:   cacheTTL,
		searchCost: searchCost,
		log:        log,
	}
}

// Search is credit-gated like listing creation; VIP bypass applies and
// the debit happens only after results were produced.
func (s *SearchService) Search(ctx context.Context, userID int64, query string) ([]*entity.Listing, error) {
	permit, err := s.gate.Authorize(ctx, userID, s.searchCost)
	if err != nil {
		return nil, err
	}
	if !permit.Allowed {
		return nil, entity.ErrInsufficientCredits
	}

	filter := entity.SearchFilter{Keyword: strings.TrimSpace(query)}
	if raw, genErr := s.gen.GenerateText(ctx, fmt.Sprintf(searchFilterPrompt, query)); genErr == nil {
		if parsed, ok := ParseSearchFilter(raw); ok {
			filter = parsed
		}
	} else {
		s.log.Warnf("search filter extraction failed for user %d: %v", userID, genErr)
	}

	results, err := s.listings.FindActive(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed for user %d: %w", userID, err)
	}

	if !permit.VIP {
		if err := s.gate.Debit(ctx, userID, s.searchCost); err != nil {
			s.log.Warnf("failed to debit search cost from user %d: %v", userID, err)
		}
	}

	for _, listing := range results {
		if err := s.cache.Set(ctx, listing, s.cacheTTL); err != nil {
			s.log.Warnf("failed to cache search result %s: %v", listing.ID, err)
		}
	}
	return results, nil
}

// ParseSearchFilter extracts FILTER:<keyword>|<maxPrice>|<location> from
// the model output. Reports false when no usable filter line is found.
func ParseSearchFilter(text string) (entity.SearchFilter, bool) {
	idx := strings.Index(text, filterTailPrefix)
	if idx < 0 {
		return entity.SearchFilter{}, false
	}

	tail := text[idx+len(filterTailPrefix):]
	if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
		tail = tail[:nl]
	}

	parts := strings.SplitN(tail, "|", 3)
	filter := entity.SearchFilter{Keyword: strings.TrimSpace(parts[0])}
	if filter.Keyword == "" {
		return entity.SearchFilter{}, false
	}
	if len(parts) > 1 {
		if price, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil && price > 0 {
			filter.MaxPrice = price
		}
	}
	if len(parts) > 2 {
		filter.Location = strings.TrimSpace(parts[2])
	}
	return filter, true
}
