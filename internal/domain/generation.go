package domain

// GenerationRequest is one call to the remote image generator. BaseImage,
// when set, asks for a variation of an earlier artifact.
type GenerationRequest struct {
	Prompt            string
	Model             string
	Steps             int
	Seed              int64
	Width             int
	Height            int
	BaseImage         []byte
	BaseImageStrength float64
}

type GeneratedArtifact struct {
	Bytes     []byte
	SourceURL string
	JobID     string
}
