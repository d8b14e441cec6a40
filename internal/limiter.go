package internal

// Default per-role caps for bounding downstream context size.
const (
	DefaultMaxUserMessages      = 200
	DefaultMaxAssistantMessages = 200
)

// LimitMeta reports what truncation removed. It is nil when nothing was
// truncated, so callers emit no event for the common case.
type LimitMeta struct {
	UserTruncated      bool
	UserRemoved        int
	AssistantTruncated bool
	AssistantRemoved   int
}

// Limit independently caps the count of user and assistant messages,
// keeping the most recent N of each role while preserving the overall
// chronological interleaving of the kept set. Messages with an
// unrecognized or missing role pass through unfiltered, neither counted
// against a cap nor dropped, for compatibility with older data.
func Limit(history []Message, maxUser, maxAssistant int) ([]Message, *LimitMeta) {
	if maxUser <= 0 {
		maxUser = DefaultMaxUserMessages
	}
	if maxAssistant <= 0 {
		maxAssistant = DefaultMaxAssistantMessages
	}

	userCount, assistantCount := 0, 0
	for _, msg := range history {
		switch msg.Role {
		case "user":
			userCount++
		case "assistant":
			assistantCount++
		}
	}

	if userCount <= maxUser && assistantCount <= maxAssistant {
		return history, nil
	}

	// Walk from the end so "most recent N" is a per-role suffix, then keep
	// original order.
	dropUser := userCount - maxUser
	dropAssistant := assistantCount - maxAssistant

	kept := make([]Message, 0, len(history))
	seenUser, seenAssistant := 0, 0
	for _, msg := range history {
		switch msg.Role {
		case "user":
			seenUser++
			if seenUser <= dropUser {
				continue
			}
		case "assistant":
			seenAssistant++
			if seenAssistant <= dropAssistant {
				continue
			}
		}
		kept = append(kept, msg)
	}

	meta := &LimitMeta{}
	if dropUser > 0 {
		meta.UserTruncated = true
		meta.UserRemoved = dropUser
	}
	if dropAssistant > 0 {
		meta.AssistantTruncated = true
		meta.AssistantRemoved = dropAssistant
	}
	return kept, meta
}
