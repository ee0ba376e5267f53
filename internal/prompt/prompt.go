// Package prompt builds grounded, language-aware prompts for the generation chain.
package prompt

import (
	"fmt"
	"strings"
)

// RefusalPhrase is the exact phrase the model must use when the context does
// not contain the answer.
const RefusalPhrase = "I don't know"

// ContextSeparator joins retrieved chunks in the prompt context.
const ContextSeparator = "\n---\n"

// sameLanguage is used when the language code is unknown or undetected.
const sameLanguage = "Respond in the same language as the question."

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ta": "Tamil",
	"te": "Telugu",
	"kn": "Kannada",
	"ml": "Malayalam",
	"bn": "Bengali",
	"mr": "Marathi",
	"gu": "Gujarati",
	"pa": "Punjabi",
	"ur": "Urdu",
	"or": "Odia",
	"as": "Assamese",
}

// LanguageName returns the human-readable name for a language code.
func LanguageName(code string) (string, bool) {
	name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]
	return name, ok
}

// LanguageInstruction returns the response-language sentence for a code.
func LanguageInstruction(code string) string {
	if name, ok := LanguageName(code); ok {
		return fmt.Sprintf("Respond in %s.", name)
	}
	return sameLanguage
}

// Build returns the prompt for answering query from context alone. Every
// prompt restricts the answer to the context, names the refusal phrase and
// fixes the response language.
func Build(query, context, lang string) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant for students. ")
	b.WriteString("Answer the student's question using only the provided context. ")
	b.WriteString("Do not use outside knowledge.\n")
	fmt.Fprintf(&b, "If the answer is not in the context, say %q.\n", RefusalPhrase)
	b.WriteString("Always give a clear and simple explanation suitable for students.\n")
	b.WriteString(LanguageInstruction(lang))
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")

	return b.String()
}
