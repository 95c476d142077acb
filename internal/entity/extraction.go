package entity

// ImagePart is one uploaded image: raw bytes, the format tag the vision
// API expects ("png", "jpeg", ...) and the source label (original filename)
// used to name the resulting sheet.
type ImagePart struct {
	Data        []byte
	Format      string
	SourceLabel string
}

// ExtractionRequest is the per-run input to the pipeline. Ephemeral.
type ExtractionRequest struct {
	Images         []ImagePart
	Note           string
	MergeRequested bool
}
