package interp

import (
	"fmt"
	"strings"
)

// BuildSystemInstruction assembles the interpreter system prompt for a
// live session. The instruction pins the language pair, forbids echoing
// the source language (the input transcription channel already carries
// it), and folds in the rolling conversation context as a terminology
// hint only, never for verbatim repetition.
func BuildSystemInstruction(sourceLang, targetLang, contextHint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a professional real-time interpreter.
The speaker is speaking %s.
Your job is to:
1. Translate into %s immediately.
2. Speak ONLY the translation in %s with high clarity.

Important:
- The platform already provides the source transcript via the input transcription channel.
- Do NOT speak, repeat, or include the %s transcript in your output.
- Do NOT mix languages in the same output.

Guidelines:
- Maintain the exact tone and emotion.
- Do not add conversational filler.
- Preserve domain terminology accurately.`, sourceLang, targetLang, targetLang, sourceLang)

	if hint := strings.TrimSpace(contextHint); hint != "" {
		fmt.Fprintf(&b, "\n\nConversation context (use for terminology consistency, do not quote verbatim):\n%s", hint)
	}

	return b.String()
}

// BuildTranslatePrompt assembles the one-shot translation prompt used
// for finalized messages outside the live session.
func BuildTranslatePrompt(text, sourceLang, targetLang, contextHint string) string {
	source := sourceLang
	if source == "" {
		source = "the source language"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate from %s to %s.\nOutput ONLY the translation, no extra commentary.", source, targetLang)
	if hint := strings.TrimSpace(contextHint); hint != "" {
		fmt.Fprintf(&b, "\n\nContext:\n%s", hint)
	}
	fmt.Fprintf(&b, "\n\nText:\n%s", text)
	return b.String()
}
