package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petri/petri-go/internal/client"
	"github.com/petri/petri-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnswerService_NoHits(t *testing.T) {
	llm := &fakeChatModel{reply: "Keep an eye on it."}
	svc := NewAnswerService(llm, zap.NewNop())

	answer, err := svc.Compose(context.Background(), ComposeInput{Message: "is my rabbit ok?", Species: "rabbit"})
	require.NoError(t, err)

	assert.Equal(t, "Keep an eye on it.", answer.Text)
	assert.False(t, answer.UsedKnowledgeBase)
	assert.Empty(t, answer.KnowledgeRecordIDs)
	assert.Empty(t, answer.SourceURLs)

	userTurn := llm.messages[0][1].Content
	assert.True(t, strings.HasSuffix(userTurn, "Verified context:\n"+NoMatchesContext), userTurn)
}

func TestAnswerService_MessagesAndTemperature(t *testing.T) {
	llm := &fakeChatModel{reply: "answer"}
	svc := NewAnswerService(llm, zap.NewNop())

	_, err := svc.Compose(context.Background(), ComposeInput{
		Message:          "my dog is limping",
		Species:          "dog",
		ImageObservation: "Swollen paw pad.",
		Hits:             []model.KnowledgeRecord{{ID: 7, Question: "dog limping", Answer: "rest and check paw"}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, llm.calls)
	assert.InDelta(t, 0.6, llm.temps[0], 1e-9)
	msgs := llm.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, client.RoleSystem, msgs[0].Role)
	assert.Equal(t, answerSystemPrompt, msgs[0].Content)
	assert.Equal(t, client.RoleUser, msgs[1].Role)
	assert.Equal(t,
		"Image observation: Swollen paw pad.\n\n"+
			"User message: my dog is limping\n\n"+
			"Species: dog\n\n"+
			"Verified context:\n1. Q: dog limping\n   A: rest and check paw",
		msgs[1].Content)
}

func TestAnswerService_EmptyReplyUsesFallback(t *testing.T) {
	svc := NewAnswerService(&fakeChatModel{reply: " \n "}, zap.NewNop())

	answer, err := svc.Compose(context.Background(), ComposeInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer.Text)
	assert.Contains(t, answer.Text, "trouble composing an answer")
}

func TestAnswerService_MetadataFromHits(t *testing.T) {
	svc := NewAnswerService(&fakeChatModel{reply: "answer"}, zap.NewNop())

	answer, err := svc.Compose(context.Background(), ComposeInput{
		Message: "limping",
		Hits: []model.KnowledgeRecord{
			{ID: 3, SourceURL: "https://vet.example/a"},
			{ID: 1},
			{ID: 2, SourceURL: "https://vet.example/a"},
		},
	})
	require.NoError(t, err)

	assert.True(t, answer.UsedKnowledgeBase)
	assert.Equal(t, []int64{3, 1, 2}, answer.KnowledgeRecordIDs)
	assert.Equal(t, []string{"https://vet.example/a"}, answer.SourceURLs)
}

func TestAnswerService_ErrorPropagates(t *testing.T) {
	upstream := errors.New("rate limited")
	svc := NewAnswerService(&fakeChatModel{err: upstream}, zap.NewNop())

	_, err := svc.Compose(context.Background(), ComposeInput{Message: "x"})
	assert.ErrorIs(t, err, upstream)
}

func TestBuildUserPrompt_OmitsEmptyParts(t *testing.T) {
	got := BuildUserPrompt(ComposeInput{})
	assert.Equal(t, "Verified context:\n"+NoMatchesContext, got)
}
