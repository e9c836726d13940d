package domain

// PolicyInput is what the generation policy sees before a request is sent
// to the remote generator.
type PolicyInput struct {
	Generation    GenerationRequestInput `json:"generation"`
	Session       PolicySession          `json:"session"`
	HasBaseImage  bool                   `json:"has_base_image"`
	BaseImageSize int                    `json:"base_image_size,omitempty"`
}

type GenerationRequestInput struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Steps  int    `json:"steps"`
	Seed   int64  `json:"seed"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type PolicySession struct {
	TraceToken    string `json:"trace_token"`
	SnapshotCount int    `json:"snapshot_count"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
