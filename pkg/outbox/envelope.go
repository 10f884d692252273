package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the wire shape stored in the outbox payload column and
// published to Pub/Sub verbatim.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}
