package rag

// Segment is an immutable chunk of indexed source text with its metadata
// (title, source url, chunk index, ...). Segments are created at ingestion
// time; this package only reads them.
type Segment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Match pairs a Segment with the similarity score the vector store returned
// for it. Higher means more relevant.
type Match struct {
	Segment Segment `json:"segment"`
	Score   float64 `json:"score"`
}

// Answer is one piece of supporting evidence shown to the caller.
type Answer struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// CompleteAnswer is the unit returned for a non-streaming question: the
// generated text plus the evidence it was grounded on, best match first.
type CompleteAnswer struct {
	GeneratedAnswer   string   `json:"generated_answer"`
	RelevantDocuments []Answer `json:"relevant_documents"`
}

// Assemble combines generated text with its ranked evidence. Pure data
// composition, no failure modes.
func Assemble(generated string, answers []Answer) CompleteAnswer {
	if answers == nil {
		answers = []Answer{}
	}
	return CompleteAnswer{GeneratedAnswer: generated, RelevantDocuments: answers}
}
