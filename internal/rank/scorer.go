package rank

import "jobmail-engine/internal/domain"

// Scorer rates how likely an email is a real offer for topic. Zero means
// rejected.
type Scorer interface {
	Score(email domain.EmailRecord, topic string) int
}
