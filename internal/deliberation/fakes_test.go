package deliberation_test

import (
	"context"
	"encoding/json"

	"github.com/coinquorum/tradeengine/internal/llm"
)

// scriptedLLMClient returns the response whose marker key appears in the user
// prompt, or fallback when no marker matches. It mirrors the
// fakeLLMClient used to unit-test internal/llm's Analyst wrapper.
type scriptedLLMClient struct {
	responses map[string]string // keyed by a marker substring in the user prompt
	fallback  string
	err       error
}

func (f *scriptedLLMClient) Complete(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	panic("not used")
}

func (f *scriptedLLMClient) CompleteWithRetry(ctx context.Context, messages []llm.ChatMessage, maxRetries int) (*llm.ChatResponse, error) {
	panic("not used")
}

func (f *scriptedLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for marker, resp := range f.responses {
		if marker != "" && containsMarker(userPrompt, marker) {
			return resp, nil
		}
	}
	return f.fallback, nil
}

func (f *scriptedLLMClient) ParseJSONResponse(content string, target interface{}) error {
	return json.Unmarshal([]byte(content), target)
}

func containsMarker(haystack, needle string) bool {
	return len(needle) > 0 && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

var _ llm.LLMClient = (*scriptedLLMClient)(nil)
