package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/relay/internal/config"
)

func TestServeRequiresCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ASSISTANT_ID", "")

	cmd := newServeCommand()
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestServeRejectsMissingPolicyFile(t *testing.T) {
	cfg := &config.Config{
		APIKey:            "sk-test",
		AssistantID:       "asst_1",
		Mode:              "MOCK",
		PollAttempts:      1,
		MessagePolicyPath: t.TempDir() + "/missing.rego",
	}

	err := serve(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize message policy")
}

func TestChatCommandFlags(t *testing.T) {
	cmd := newChatCommand()
	assert.Equal(t, "ws://localhost:3000/chat/ws", cmd.Flags().Lookup("url").DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("thread"))
}
