package domain

import "strings"

// Strictness selects how generously an in-between broker status is read.
// The initial setup path is lenient: a connection the broker calls
// "initiated" or "enabled" is good enough to reuse. The poll-for-confirmation
// path is strict: the same status keeps the poll waiting for a real
// active signal.
type Strictness string

const (
	StrictnessLenient Strictness = "lenient"
	StrictnessStrict  Strictness = "strict"
)

// Broker status vocabularies, checked in priority order by ClassifyBrokerStatus.
var (
	// failureVocab terms anywhere in the status mean the connection failed.
	failureVocab = []string{"failed", "error", "cancelled", "invalid", "deleted"}

	// activeVocab terms must match the whole status exactly.
	activeVocab = []string{"active", "connected", "ready", "authenticated"}

	// activeishVocab terms are accepted as active only in the lenient path.
	activeishVocab = []string{"active", "connected", "ready", "authenticated", "initiated", "enabled"}

	// progressVocab terms mean the broker is still working.
	progressVocab = []string{"initializing", "pending", "processing"}

	// validVocab terms mark a candidate worth keeping during duplicate
	// resolution even though it is not active yet.
	validVocab = []string{"initiated", "connected", "ready", "enabled", "authenticated"}
)

// ClassifyBrokerStatus maps the broker's free-text status onto the closed
// ConnectionStatus set. unknownIsActive controls the fallback polarity for an
// empty or unrecognized status: true treats an unknown-but-present connection
// as usable, false treats it as still pending.
func ClassifyBrokerStatus(raw string, strictness Strictness, unknownIsActive bool) ConnectionStatus {
	status := strings.ToLower(strings.TrimSpace(raw))

	for _, term := range failureVocab {
		if strings.Contains(status, term) {
			return ConnectionStatusError
		}
	}

	for _, term := range activeVocab {
		if status == term {
			return ConnectionStatusActive
		}
	}

	for _, term := range activeishVocab {
		if strings.Contains(status, term) {
			if strictness == StrictnessLenient {
				return ConnectionStatusActive
			}
			return ConnectionStatusPending
		}
	}

	for _, term := range progressVocab {
		if strings.Contains(status, term) {
			return ConnectionStatusPending
		}
	}

	if unknownIsActive {
		return ConnectionStatusActive
	}
	return ConnectionStatusPending
}

// HasValidStatus reports whether a candidate's status contains a term from
// the valid-but-not-necessarily-active vocabulary.
func HasValidStatus(raw string) bool {
	status := strings.ToLower(strings.TrimSpace(raw))
	for _, term := range validVocab {
		if strings.Contains(status, term) {
			return true
		}
	}
	return false
}

// HasExactActiveStatus reports whether a candidate's status exactly equals an
// active-vocabulary term.
func HasExactActiveStatus(raw string) bool {
	status := strings.ToLower(strings.TrimSpace(raw))
	for _, term := range activeVocab {
		if status == term {
			return true
		}
	}
	return false
}
