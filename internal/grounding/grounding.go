// Package grounding assembles the prompt that confines the generator to
// retrieved context.
package grounding

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/askdesk/internal/llm"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/session"
)

// NoContext stands in for the grounding block when retrieval found nothing.
// The system instruction tells the generator what it means.
const NoContext = "<<no context>>"

// Refusal is the literal utterance the generator is told to produce when
// the answer is not in the context. The gate's phrase list matches it.
const Refusal = "I don't know."

// DefaultLanguage is used when no language hint is given.
const DefaultLanguage = "en-US"

// BuildGroundingBlock renders hits as "[[id]] text" fragments separated by
// blank lines, in input order.
func BuildGroundingBlock(hits []retrieval.Hit) string {
	if len(hits) == 0 {
		return NoContext
	}
	fragments := make([]string, len(hits))
	for i, h := range hits {
		fragments[i] = fmt.Sprintf("[[%s]] %s", h.ID, h.Text)
	}
	return strings.Join(fragments, "\n\n")
}

// BuildSystemInstruction returns the system prompt for block. The output
// depends only on its inputs.
func BuildSystemInstruction(block, lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	var b strings.Builder
	b.WriteString("You are an assistant. Answer using ONLY the context below. ")
	b.WriteString("Do NOT hallucinate or add facts that are not in the context. ")
	fmt.Fprintf(&b, "If the answer is not present in the context, say %q in the same language as the user (lang=%s).", Refusal, lang)
	fmt.Fprintf(&b, " A context of %s means nothing relevant was found.", NoContext)
	b.WriteString("\n\nContext:\n")
	b.WriteString(block)
	return b.String()
}

// BuildMessages returns the system instruction, then history in order, then
// the new user message. history is not modified.
func BuildMessages(instruction string, history []session.Turn, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: instruction})
	for _, turn := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(turn.Role), Content: turn.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})
	return msgs
}
