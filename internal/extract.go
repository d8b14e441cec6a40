package internal

import (
	"context"
	"encoding/json"
	"log/slog"
)

// ExtractPrompts reads the serialized prompt array from a store chunk.
// Individual malformed elements are logged and skipped; one corrupt record
// never blocks the rest. Query-layer errors propagate unchanged.
func ExtractPrompts(ctx context.Context, path string) ([]PromptRecord, error) {
	elements, err := extractArray(ctx, path, PromptsKey)
	if err != nil {
		return nil, err
	}

	records := make([]PromptRecord, 0, len(elements))
	for i, element := range elements {
		var record PromptRecord
		if err := json.Unmarshal(element, &record); err != nil {
			slog.Warn("skipping malformed prompt record",
				"key", PromptsKey, "index", i, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// ExtractGenerations reads the serialized generation array from a store
// chunk, with the same per-element tolerance as ExtractPrompts.
func ExtractGenerations(ctx context.Context, path string) ([]GenerationRecord, error) {
	elements, err := extractArray(ctx, path, GenerationsKey)
	if err != nil {
		return nil, err
	}

	records := make([]GenerationRecord, 0, len(elements))
	for i, element := range elements {
		var record GenerationRecord
		if err := json.Unmarshal(element, &record); err != nil {
			slog.Warn("skipping malformed generation record",
				"key", GenerationsKey, "index", i, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// extractArray pulls one JSON array stored under a fixed ItemTable key.
// A missing key is an empty array. A payload that parses but is not an
// array is logged and treated as empty rather than failing extraction.
func extractArray(ctx context.Context, path, key string) ([]json.RawMessage, error) {
	value, err := QueryValue(ctx, path, "ItemTable", key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(value), &elements); err != nil {
		slog.Warn("stored payload is not a JSON array, treating as empty",
			"key", key, "path", path, "error", err)
		return nil, nil
	}
	return elements, nil
}
