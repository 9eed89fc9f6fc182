package service

import (
	"bytes"
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/es"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// searchResultLimit 是单次检索返回的最大命中数。
const searchResultLimit = 20

// SearchService 提供对已提交轮次的关键字检索。
// 索引由 Kafka 消费端异步写入，检索结果对写入存在秒级延迟。
type SearchService interface {
	Search(ctx context.Context, ownerID uint, keyword string) ([]model.SearchHitDTO, error)
}

type searchService struct {
	indexName string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(indexName string) SearchService {
	return &searchService{indexName: indexName}
}

// esSearchResponse 对应 Elasticsearch 检索响应中我们关心的部分。
type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score     float64          `json:"_score"`
			Source    model.EsDocument `json:"_source"`
			Highlight struct {
				Content []string `json:"content"`
			} `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 在调用者自己的轮次中做全文检索。
// owner_id 作为过滤条件，保证检索永远不会跨用户泄露内容。
func (s *searchService) Search(ctx context.Context, ownerID uint, keyword string) ([]model.SearchHitDTO, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperr.New(apperr.InvalidRequest, "检索关键字不能为空")
	}

	query := map[string]interface{}{
		"size": searchResultLimit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"content": keyword,
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{
						"owner_id": ownerID,
					},
				},
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"content": map[string]interface{}{},
			},
		},
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(query); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "构造检索请求失败", err)
	}

	res, err := es.ESClient.Search(
		es.ESClient.Search.WithContext(ctx),
		es.ESClient.Search.WithIndex(s.indexName),
		es.ESClient.Search.WithBody(&body),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "检索服务暂时不可用", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, apperr.New(apperr.Persistence, fmt.Sprintf("检索失败: %s", string(snippet)))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "解析检索响应失败", err)
	}

	hits := make([]model.SearchHitDTO, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		snippet := h.Source.Content
		if len(h.Highlight.Content) > 0 {
			snippet = h.Highlight.Content[0]
		}
		hits = append(hits, model.SearchHitDTO{
			ConversationID: h.Source.ConversationID,
			Role:           h.Source.Role,
			Snippet:        snippet,
			Timestamp:      h.Source.Timestamp,
			Score:          h.Score,
		})
	}
	return hits, nil
}
