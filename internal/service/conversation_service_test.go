package service

import (
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCreatesEmptyConversation(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	conv, err := svc.Start(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, uint(1), conv.OwnerID)
	assert.Empty(t, conv.Turns)
}

func TestGetNotFoundForAbsentAndForeign(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	foreign, err := repo.Create(context.Background(), 99)
	require.NoError(t, err)

	for name, id := range map[string]string{"absent": uuid.NewString(), "foreign": foreign.ID} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Get(context.Background(), id, 1)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.NotFound))
		})
	}
}

func TestListBuildsPreviews(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	conv, err := repo.Create(context.Background(), 1)
	require.NoError(t, err)
	_, err = repo.AppendTurn(context.Background(), conv.ID, model.Turn{
		Role: model.RoleUser, Content: "你好", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	_, err = repo.AppendTurn(context.Background(), conv.ID, model.Turn{
		Role: model.RoleAssistant, Content: "你好，有什么可以帮你？", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	// 他人的对话不出现在列表中
	_, err = repo.Create(context.Background(), 99)
	require.NoError(t, err)

	previews, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, previews, 1)

	p := previews[0]
	assert.Equal(t, conv.ID, p.ID)
	assert.Equal(t, 2, p.MessageCount)
	// 预览取最后一条轮次的内容
	assert.Equal(t, "你好，有什么可以帮你？", p.Preview)
}

func TestListPreviewTruncatesLongContent(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	conv, err := repo.Create(context.Background(), 1)
	require.NoError(t, err)

	// 多字节字符按字符数截断，不会截出乱码
	long := strings.Repeat("汉", previewMaxRunes+20)
	_, err = repo.AppendTurn(context.Background(), conv.ID, model.Turn{
		Role: model.RoleUser, Content: long, Timestamp: time.Now(),
	})
	require.NoError(t, err)

	previews, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, previews, 1)

	runes := []rune(previews[0].Preview)
	assert.Len(t, runes, previewMaxRunes+1) // 截断后缀一个省略号
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestStatsAggregatesTurns(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	for i := 0; i < 3; i++ {
		conv, err := repo.Create(context.Background(), 1)
		require.NoError(t, err)
		_, err = repo.AppendTurn(context.Background(), conv.ID, model.Turn{
			Role: model.RoleUser, Content: "你好", Timestamp: time.Now(),
		})
		require.NoError(t, err)
		_, err = repo.AppendTurn(context.Background(), conv.ID, model.Turn{
			Role: model.RoleAssistant, Content: "好的", Timestamp: time.Now(),
		})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalConversations)
	assert.Equal(t, 6, stats.TotalTurns)
	assert.Len(t, stats.RecentActivity, 3)
}

func TestStatsLimitsRecentActivity(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo)

	for i := 0; i < recentActivityCount+3; i++ {
		_, err := repo.Create(context.Background(), 1)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, recentActivityCount+3, stats.TotalConversations)
	assert.Len(t, stats.RecentActivity, recentActivityCount)
}
