package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Hit is one ranked fragment returned by the retrieval service.
type Hit struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts numeric ids and keeps any field other than id, text
// and score as hit metadata.
func (h *Hit) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding hit: %w", err)
	}

	*h = Hit{}
	for key, value := range raw {
		switch key {
		case "id":
			id, err := decodeID(value)
			if err != nil {
				return err
			}
			h.ID = id
		case "text":
			if err := json.Unmarshal(value, &h.Text); err != nil {
				return fmt.Errorf("decoding hit text: %w", err)
			}
		case "score":
			if isNull(value) {
				continue
			}
			if err := json.Unmarshal(value, &h.Score); err != nil {
				return fmt.Errorf("decoding hit score: %w", err)
			}
		case "metadata":
			var md map[string]any
			if err := json.Unmarshal(value, &md); err == nil {
				for k, v := range md {
					h.setMetadata(k, v)
				}
				continue
			}
			fallthrough
		default:
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return fmt.Errorf("decoding hit field %q: %w", key, err)
			}
			h.setMetadata(key, v)
		}
	}
	return nil
}

func (h *Hit) setMetadata(key string, value any) {
	if h.Metadata == nil {
		h.Metadata = make(map[string]any)
	}
	h.Metadata[key] = value
}

func decodeID(value json.RawMessage) (string, error) {
	if isNull(value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("decoding hit id: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func isNull(value json.RawMessage) bool {
	return string(bytes.TrimSpace(value)) == "null"
}

// Meta describes the corpus snapshot behind a response, for example its
// content fingerprint (pdfHash) and build time (createdAt). It is passed
// through without interpretation.
type Meta map[string]any

// Response is the decoded body of a retrieval call.
type Response struct {
	Results []Hit `json:"results"`
	Meta    Meta  `json:"meta,omitempty"`
}

// Retriever fetches the topK most relevant hits for query, ordered by
// descending score.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*Response, error)
}
