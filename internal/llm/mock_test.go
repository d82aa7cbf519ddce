package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chat(t *testing.T, p Provider, content string) *ChatResponse {
	t.Helper()
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: content}},
		Model:    p.GetDefaultModel(),
	})
	require.NoError(t, err)
	return resp
}

func TestMockProvider_Echo(t *testing.T) {
	p := NewEchoProvider()

	resp := chat(t, p, "hello")
	assert.Equal(t, "Echo: hello", resp.Content)
	assert.Equal(t, "mock-model", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestMockProvider_Fixed(t *testing.T) {
	p := NewFixedProvider("always this")

	assert.Equal(t, "always this", chat(t, p, "one").Content)
	assert.Equal(t, "always this", chat(t, p, "two").Content)
}

func TestMockProvider_FixturesRepeatLast(t *testing.T) {
	p := NewFixturesProvider([]string{"first", "second"})

	assert.Equal(t, "first", chat(t, p, "a").Content)
	assert.Equal(t, "second", chat(t, p, "b").Content)
	assert.Equal(t, "second", chat(t, p, "c").Content)
	assert.Equal(t, 3, p.GetCallCount())
}

func TestMockProvider_Error(t *testing.T) {
	p := NewErrorProvider()

	_, err := p.Chat(context.Background(), ChatRequest{})
	assert.Error(t, err)
}

func TestMockProvider_ErrorAfter(t *testing.T) {
	p := NewMockProvider(MockConfig{Mode: MockModeEcho, ErrorAfter: 2})

	chat(t, p, "one")
	chat(t, p, "two")
	_, err := p.Chat(context.Background(), ChatRequest{})
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	answer, err := Ask(context.Background(), NewFixedProvider("42"), "meaning of life?")
	require.NoError(t, err)
	assert.Equal(t, "42", answer)

	_, err = Ask(context.Background(), NewErrorProvider(), "anything")
	assert.Error(t, err)
}
