package interp

import (
	"strings"
	"testing"
)

func TestSystemInstructionPinsLanguagePair(t *testing.T) {
	got := BuildSystemInstruction("Spanish", "English", "")

	for _, want := range []string{
		"speaking Spanish",
		"Translate into English",
		"ONLY the translation in English",
		"include the Spanish transcript",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("instruction missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Conversation context") {
		t.Fatal("context block present without a hint")
	}
}

func TestSystemInstructionIncludesContextHint(t *testing.T) {
	got := BuildSystemInstruction("Spanish", "English", "hola => hello")

	if !strings.Contains(got, "hola => hello") {
		t.Fatalf("hint not folded in:\n%s", got)
	}
	if !strings.Contains(got, "do not quote verbatim") {
		t.Fatalf("hint usage constraint missing:\n%s", got)
	}
}

func TestTranslatePromptFallsBackToGenericSource(t *testing.T) {
	got := BuildTranslatePrompt("bonjour", "", "English", "")
	if !strings.Contains(got, "from the source language to English") {
		t.Fatalf("fallback source missing:\n%s", got)
	}
	if !strings.Contains(got, "Text:\nbonjour") {
		t.Fatalf("text block missing:\n%s", got)
	}
}
