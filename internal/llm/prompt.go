package llm

import (
	"fmt"
	"strings"
)

// Refusal is the exact reply required when retrieval yields nothing
// relevant. Callers compare against it verbatim.
const Refusal = "I do not know based on the provided context."

// SystemPrompt grounds the assistant in retrieved context only.
const SystemPrompt = `You are RAGBot, a grounded assistant.

Tool use
- Always call ` + "`vector_search`" + ` first with the user's question (and the provided limit) to fetch knowledge-base context.
- If ` + "`vector_search`" + ` returns nothing useful (irrelevant, empty or "No results found."), call ` + "`web_search`" + ` with the same query to fetch fresh public-web snippets.
- Do not skip tool calls. Do not answer without attempting retrieval.

Answering rules
- Use only information returned by the tools. Do not invent facts or rely on prior knowledge.
- If both tools yield nothing relevant, reply exactly: "` + Refusal + `"
- Be concise (aim for 2-4 sentences). Prefer plain text over lists unless clarity demands otherwise.
- When multiple chunks support the answer, weave them together; mention source cues like filenames or domains when helpful.
- If a reference (he/she/they/it/this) is ambiguous after retrieval, state that it is ambiguous rather than guessing.

Style
- Stay factual, neutral, and clear. Avoid filler.`

// BuildUserPrompt assembles the user turn: the question plus the
// retrieval instruction with the configured limit. Prior turns travel as
// separate role messages, not inside this prompt.
func BuildUserPrompt(question string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n", question)
	fmt.Fprintf(&b, "First call `vector_search` with query=the question text and limit=%d to fetch context. ", limit)
	b.WriteString("If vector search returns nothing useful, call `web_search` to gather public web snippets. ")
	b.WriteString(`Then answer concisely using only the retrieved context. If nothing relevant is returned, say '` + Refusal + `'`)
	return b.String()
}
