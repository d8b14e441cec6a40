package internal

import (
	"log/slog"
	"strings"
)

// ReconstructionMeta reports the original input counts, not the
// post-filter counts, so callers can detect how much was dropped.
type ReconstructionMeta struct {
	PromptCount     int `json:"prompt_count"`
	GenerationCount int `json:"generation_count"`
}

// Reconstruction is the merged, uniformly-shaped output of one store
// chunk's prompt and generation arrays.
type Reconstruction struct {
	Messages []Message
	Meta     ReconstructionMeta
}

// Reconstruct merges extracted prompts and generations into one message
// list. No chronological pairing is attempted: extraction order is
// preserved as-is, all prompts first in stored order, then all generations
// in stored order. Downstream consumers infer conversational flow from
// content, not position.
func Reconstruct(prompts []PromptRecord, generations []GenerationRecord) Reconstruction {
	out := Reconstruction{
		Meta: ReconstructionMeta{
			PromptCount:     len(prompts),
			GenerationCount: len(generations),
		},
	}
	out.Messages = make([]Message, 0, len(prompts)+len(generations))

	for i, prompt := range prompts {
		if strings.TrimSpace(prompt.Text) == "" {
			slog.Warn("skipping prompt with no text", "index", i)
			continue
		}
		// Prompts carry no server timestamp; Timestamp and Type stay nil.
		out.Messages = append(out.Messages, Message{
			Role:    "user",
			Content: prompt.Text,
		})
	}

	for i, gen := range generations {
		if strings.TrimSpace(gen.TextDescription) == "" {
			slog.Warn("skipping generation with no description", "index", i)
			continue
		}
		ts := gen.UnixMs
		genType := gen.Type
		out.Messages = append(out.Messages, Message{
			Role:      "assistant",
			Content:   gen.TextDescription,
			Timestamp: &ts,
			Type:      &genType,
		})
	}

	return out
}
