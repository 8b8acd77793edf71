package models

import "time"

// Verdict is the fused outcome for a verification request.
type Verdict string

const (
	VerdictUnknown              Verdict = "unknown"
	VerdictReliable             Verdict = "reliable"
	VerdictMisinformation       Verdict = "misinformation"
	VerdictLikelyMisinformation Verdict = "likely_misinformation"
	VerdictNeedsVerification    Verdict = "needs_verification"
	VerdictError                Verdict = "error"
)

// TextLabel is the two-class output of the text signal producer.
type TextLabel string

const (
	TextLabelReliable       TextLabel = "reliable"
	TextLabelMisinformation TextLabel = "misinformation"
	TextLabelError          TextLabel = "error"
)

// ImageVerdict classifies the image forensics outcome.
type ImageVerdict string

const (
	ImageVerdictAuthentic   ImageVerdict = "authentic"
	ImageVerdictManipulated ImageVerdict = "potentially_manipulated"
	ImageVerdictError       ImageVerdict = "error"
)

// RawModelOutput preserves the classifier output before heuristic adjustment.
type RawModelOutput struct {
	Label         TextLabel          `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"raw_probabilities"`
}

// TextSignal is the text producer's contribution to fusion.
type TextSignal struct {
	Label         TextLabel          `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Language      string             `json:"language"`
	Explanation   string             `json:"explanation,omitempty"`
	ModelUsed     string             `json:"model_used,omitempty"`
	RawOutput     *RawModelOutput    `json:"raw_model_output,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// ImageMetadata captures basic properties of the decoded image.
type ImageMetadata struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageSignal is the image producer's contribution to fusion.
type ImageSignal struct {
	Verdict           ImageVerdict   `json:"verdict"`
	Confidence        float64        `json:"confidence"`
	IsReused          bool           `json:"is_reused"`
	ReusedSource      string         `json:"reused_source,omitempty"`
	ManipulationScore float64        `json:"manipulation_score"`
	Hash              string         `json:"hash,omitempty"`
	Metadata          *ImageMetadata `json:"metadata,omitempty"`
	Explanation       string         `json:"explanation,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// EvidenceItem is one prior fact-check retrieved for a claim.
type EvidenceItem struct {
	ID          string  `json:"id,omitempty"`
	Claim       string  `json:"claim"`
	Verdict     string  `json:"verdict"`
	Similarity  float64 `json:"similarity"`
	Source      string  `json:"source,omitempty"`
	URL         string  `json:"url,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	Language    string  `json:"language,omitempty"`
}

// EvidenceVerdictFalse marks a debunked claim in the evidence corpus.
const EvidenceVerdictFalse = "false"

// FusionResult is the combined outcome returned to callers.
type FusionResult struct {
	VerificationID string         `json:"verification_id,omitempty"`
	OverallVerdict Verdict        `json:"overall_verdict"`
	Confidence     float64        `json:"confidence"`
	TextSignal     *TextSignal    `json:"text_analysis,omitempty"`
	ImageSignal    *ImageSignal   `json:"image_analysis,omitempty"`
	Evidence       []EvidenceItem `json:"evidence"`
	Explanation    string         `json:"explanation"`
	ProcessingTime float64        `json:"processing_time"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
}
