package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/bytedance/sonic"

	"casalinger_engine/pkg"
)

// CompleteJSON asks the model for a structured object and decodes it into
// out. The prompt itself must instruct the model to answer with JSON;
// this just handles the decoding side.
func CompleteJSON(ctx context.Context, m pkg.LanguageModel, system, user string, out any) error {
	raw, err := m.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	return DecodeJSON(raw, out)
}

// DecodeJSON extracts the first JSON object from a model response and
// unmarshals it. Models wrap output in markdown fences or prose often
// enough that decoding the raw string directly is not reliable.
func DecodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return errors.New("no JSON object in model response")
	}
	return sonic.Unmarshal([]byte(s[start:end+1]), out)
}
