package llm

import (
	"context"
	"os"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGeminiConfig(t *testing.T) {
	t.Run("Reads environment with defaults", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini-key")
		t.Setenv("GEMINI_MODEL", "")

		config := DefaultGeminiConfig()

		assert.Equal(t, "gemini-key", config.APIKey)
		assert.Equal(t, "gemini-2.5-flash", config.Model)
		assert.Equal(t, "gemini-embedding-001", config.EmbeddingModel)
		assert.Equal(t, int32(768), config.EmbeddingDim)
	})
}

func TestGeminiClient(t *testing.T) {
	t.Run("Requires an api key", func(t *testing.T) {
		_, err := NewGeminiClient(context.Background(), GeminiConfig{})
		assert.ErrorIs(t, err, model.ErrInput)
	})

	t.Run("Generates a mapping reply", func(t *testing.T) {
		if os.Getenv("GEMINI_API_KEY") == "" || testing.Short() {
			t.Skip("Skipping Gemini test without GEMINI_API_KEY")
		}

		client, err := NewGeminiClient(context.Background(), DefaultGeminiConfig())
		require.NoError(t, err)

		reply, err := client.Generate(context.Background(), "Reply with exactly this line and nothing else: S1 -> T1")
		require.NoError(t, err)
		assert.Contains(t, reply, "->")
	})
}
