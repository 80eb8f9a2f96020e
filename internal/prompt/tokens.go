package prompt

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const approxCharsPerToken = 4

func init() {
	// BPE ranks ship with the binary; the default loader downloads them.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter estimates the number of model tokens in text.
type TokenCounter func(text string) int

// NewTiktokenCounter resolves the tiktoken encoding of model right away,
// falling back to cl100k_base and then to a character estimate.
func NewTiktokenCounter(model string) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("tiktoken unavailable, estimating tokens by length",
			zap.String("model", model), zap.Error(err))
		return EstimateTokens
	}
	return func(text string) int {
		if tokens := enc.Encode(text, nil, nil); len(tokens) > 0 {
			return len(tokens)
		}
		return EstimateTokens(text)
	}
}

func EstimateTokens(text string) int {
	n := len(text) / approxCharsPerToken
	if n < 1 {
		return 1
	}
	return n
}
