// Package language guesses the language of a student's question.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Default is returned when detection fails or is inconclusive.
const Default = "en"

var codes = map[whatlanggo.Lang]string{
	whatlanggo.Eng: "en",
	whatlanggo.Hin: "hi",
	whatlanggo.Tam: "ta",
	whatlanggo.Tel: "te",
	whatlanggo.Kan: "kn",
	whatlanggo.Mal: "ml",
	whatlanggo.Ben: "bn",
	whatlanggo.Mar: "mr",
	whatlanggo.Guj: "gu",
	whatlanggo.Pan: "pa",
	whatlanggo.Urd: "ur",
}

// Detect returns an ISO 639-1 code for text. It never fails: empty or
// undetectable input yields Default.
func Detect(text string) (code string) {
	defer func() {
		if r := recover(); r != nil {
			code = Default
		}
	}()

	if strings.TrimSpace(text) == "" {
		return Default
	}

	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return Default
	}

	if c, ok := codes[info.Lang]; ok {
		return c
	}

	// Short Latin-script questions are often misread as other European
	// languages; only trust those when the detector is confident.
	if !info.IsReliable() {
		return Default
	}
	if c := info.Lang.Iso6391(); c != "" {
		return c
	}
	return Default
}
