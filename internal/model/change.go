package model

type ChangeRecord struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// EmbeddingText is the text fed to the embedder for both stored records and
// incoming changes: subject, one space, description.
func (r ChangeRecord) EmbeddingText() string {
	return r.Subject + " " + r.Description
}

type SimilarChange struct {
	Record ChangeRecord `json:"record"`
	Score  float64      `json:"score"`
}
