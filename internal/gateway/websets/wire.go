package websets

import "encoding/json"

// Request and response bodies of the Websets API. Only the fields this
// client reads are declared.

type createWebsetRequest struct {
	Search      searchParams      `json:"search"`
	Enrichments []enrichmentParam `json:"enrichments,omitempty"`
	ExternalID  string            `json:"externalId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type searchParams struct {
	Query    string           `json:"query"`
	Count    int              `json:"count"`
	Entity   entityParam      `json:"entity"`
	Criteria []criterionParam `json:"criteria,omitempty"`
}

type entityParam struct {
	Type string `json:"type"`
}

type criterionParam struct {
	Description string `json:"description"`
}

type enrichmentParam struct {
	Description string `json:"description"`
	Format      string `json:"format"`
}

type webset struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	ExternalID  string             `json:"externalId"`
	Searches    []websetSearch     `json:"searches"`
	Enrichments []websetEnrichment `json:"enrichments"`
}

type websetSearch struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Progress *searchProgress `json:"progress"`
}

type searchProgress struct {
	Found      int      `json:"found"`
	Analyzed   int      `json:"analyzed"`
	Completion *float64 `json:"completion"`
	TimeLeft   *int     `json:"timeLeft"`
}

type websetEnrichment struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type itemsPage struct {
	Data       []websetItem `json:"data"`
	HasMore    bool         `json:"hasMore"`
	NextCursor *string      `json:"nextCursor"`
}

type websetItem struct {
	ID          string                     `json:"id"`
	Properties  map[string]json.RawMessage `json:"properties"`
	Evaluations *[]evaluation              `json:"evaluations"`
	Enrichments []itemEnrichment           `json:"enrichments"`
}

type evaluation struct {
	Criterion  string      `json:"criterion"`
	Reasoning  string      `json:"reasoning"`
	Satisfied  string      `json:"satisfied"`
	References []reference `json:"references"`
}

type reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type itemEnrichment struct {
	EnrichmentID string   `json:"enrichmentId"`
	Status       string   `json:"status"`
	Format       string   `json:"format"`
	Result       []string `json:"result"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
