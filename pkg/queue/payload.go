package queue

import "encoding/json"

// Payload is the JSON envelope JSONCodec stores for every job.
type Payload struct {
	UUID     string          `json:"uuid"`
	Type     string          `json:"type"`
	TryIndex int             `json:"tryIndex"`
	Data     json.RawMessage `json:"data"`
}
