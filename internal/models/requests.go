package models

// AnalysisRequest bundles the optional modalities of one verification call.
// At least one of Text or ImagePath must be set; the API layer enforces that.
type AnalysisRequest struct {
	Text      string `json:"text,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// HasContent reports whether the request carries any analyzable modality.
func (r AnalysisRequest) HasContent() bool {
	return r.Text != "" || r.ImagePath != ""
}

// CorpusStats aggregates the evidence corpus for operational endpoints.
type CorpusStats struct {
	TotalItems int            `json:"total_items"`
	ByVerdict  map[string]int `json:"by_verdict"`
	ByLanguage map[string]int `json:"by_language"`
}

// ComponentHealth describes one collaborator's health state.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}
