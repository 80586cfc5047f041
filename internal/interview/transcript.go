package interview

import (
	"fmt"
	"strings"

	"interview-rag/internal/models"
)

// Export renders pairs as the downloadable plain-text transcript.
func Export(pairs []models.QAPair) string {
	var sb strings.Builder
	for i, p := range pairs {
		fmt.Fprintf(&sb, "Q%d: %s\nAnswer: %s\n\n", i+1, p.Question, p.Answer)
	}
	return sb.String()
}
