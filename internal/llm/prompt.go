package llm

import "strings"

// BuildExtractionPrompt composes the instruction sent alongside the
// uploaded images. The model is told to answer with a JSON array of row
// objects; surrounding prose is tolerated by the decoder, not invited.
func BuildExtractionPrompt(note string, merged bool) string {
	parts := []string{
		"Extract ALL tabular data from the attached image(s).",
		"Return a JSON array of objects, one object per table row.",
		"Use the visible column headers as JSON keys, exactly as written.",
		"Use numbers for numeric cells and strings otherwise; omit keys for empty cells.",
		"Return ONLY the JSON array, with no explanation and no markdown fences.",
	}
	if merged {
		parts = append(parts, "Combine the rows from all images into ONE array, in image order.")
	}
	if n := strings.TrimSpace(note); n != "" {
		parts = append(parts, "User note: "+n)
	}
	return strings.Join(parts, " ")
}
