package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerCache   = make(map[string]*tiktoken.Tiktoken)
	tokenizerCacheMu sync.RWMutex
)

// getTokenizer returns a cached tiktoken encoder for the given model.
func getTokenizer(model string) (*tiktoken.Tiktoken, error) {
	tokenizerCacheMu.RLock()
	if tkm, ok := tokenizerCache[model]; ok {
		tokenizerCacheMu.RUnlock()
		return tkm, nil
	}
	tokenizerCacheMu.RUnlock()

	tokenizerCacheMu.Lock()
	defer tokenizerCacheMu.Unlock()

	if tkm, ok := tokenizerCache[model]; ok {
		return tkm, nil
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// unknown models get the GPT-4 family encoding
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	tokenizerCache[model] = tkm
	return tkm, nil
}

// TokenCounter counts tokens of text for a bare model id.
type TokenCounter func(model, text string) int

// EstimateTokens counts tokens with tiktoken, falling back to a length
// based estimate when no encoding can be loaded.
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	tkm, err := getTokenizer(model)
	if err != nil {
		return approxTokens(text)
	}
	return len(tkm.Encode(text, nil, nil))
}

// approxTokens estimates roughly four characters per token.
func approxTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
