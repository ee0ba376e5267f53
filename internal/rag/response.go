package rag

import (
	"strconv"

	"github.com/bull/curriculum-rag/internal/document"
)

// NoKnowledgeMessage answers questions for which nothing relevant is indexed.
const NoKnowledgeMessage = "I am sorry, but I don't have information about that in my curriculum knowledge base."

const (
	unknownSource = "Unknown"
	unknownField  = "?"
)

// Citation identifies the source of one retrieved chunk.
type Citation struct {
	Source  string `json:"source"`
	Page    string `json:"page"`
	Grade   string `json:"grade"`
	Subject string `json:"subject"`
}

// Response is the answer returned to the student.
type Response struct {
	Answer           string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	DetectedLanguage string     `json:"detected_language"`
}

// Assemble builds the Response for text generated from chunks. Citations
// mirror chunks one to one. With no chunks the answer is NoKnowledgeMessage.
func Assemble(text string, chunks []document.Chunk, lang string) *Response {
	if len(chunks) == 0 {
		return &Response{
			Answer:           NoKnowledgeMessage,
			Citations:        []Citation{},
			DetectedLanguage: lang,
		}
	}

	citations := make([]Citation, len(chunks))
	for i, c := range chunks {
		citations[i] = CitationFor(c)
	}

	return &Response{
		Answer:           text,
		Citations:        citations,
		DetectedLanguage: lang,
	}
}

// CitationFor describes where chunk c came from.
func CitationFor(c document.Chunk) Citation {
	cit := Citation{
		Source:  orDefault(c.Metadata.Filename, unknownSource),
		Page:    unknownField,
		Grade:   orDefault(c.Metadata.Grade, unknownField),
		Subject: orDefault(c.Metadata.Subject, unknownField),
	}
	if c.PageNumber > 0 {
		cit.Page = strconv.Itoa(c.PageNumber)
	}
	return cit
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
