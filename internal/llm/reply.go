package llm

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// ReplyShape tags which accepted body shape a reply was decoded from.
type ReplyShape string

const (
	// ShapeText is a bare string, either raw text or a JSON string.
	ShapeText ReplyShape = "text"
	// ShapeChoices is an object exposing choices[0].message.content.
	ShapeChoices ReplyShape = "choices"
	// ShapeReply is an object exposing a top-level reply field.
	ShapeReply ReplyShape = "reply"
	// ShapeFallback is anything else, rendered as a truncated JSON dump.
	ShapeFallback ReplyShape = "fallback"
)

// FallbackLimit caps the length, in runes, of a fallback reply.
const FallbackLimit = 1000

// Reply is a decoded generation body.
type Reply struct {
	Shape ReplyShape
	Text  string
}

type choicesBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type replyBody struct {
	Reply string `json:"reply"`
}

// DecodeReply extracts the generated text from a proxy response body. A body
// that is not JSON at all is taken as plain text. Empty choices or reply
// fields do not match their shape.
func DecodeReply(body []byte) Reply {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Reply{Shape: ShapeText}
	}
	if !json.Valid(trimmed) {
		return Reply{Shape: ShapeText, Text: string(body)}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Reply{Shape: ShapeText, Text: s}
		}
	case '{':
		var c choicesBody
		if err := json.Unmarshal(trimmed, &c); err == nil &&
			len(c.Choices) > 0 && c.Choices[0].Message.Content != "" {
			return Reply{Shape: ShapeChoices, Text: c.Choices[0].Message.Content}
		}
		var r replyBody
		if err := json.Unmarshal(trimmed, &r); err == nil && r.Reply != "" {
			return Reply{Shape: ShapeReply, Text: r.Reply}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Reply{Shape: ShapeFallback, Text: truncateRunes(string(trimmed), FallbackLimit)}
	}
	return Reply{Shape: ShapeFallback, Text: truncateRunes(compact.String(), FallbackLimit)}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
