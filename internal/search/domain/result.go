package domain

// Record is one raw row from the record store. Its shape depends on the
// entity type it came from.
type Record map[string]any

// SearchResult is the uniform shape every record is projected into.
type SearchResult struct {
	ID             string     `json:"id"`
	Type           EntityType `json:"type"`
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle,omitempty"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Value          *float64   `json:"value,omitempty"`
	Date           string     `json:"date,omitempty"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	Tags           []string   `json:"tags"`
	Metadata       Record     `json:"metadata"`
	RelevanceScore *float64   `json:"relevanceScore,omitempty"`
}

// Key identifies a result within one response.
func (r SearchResult) Key() string {
	return string(r.Type) + ":" + r.ID
}

// SearchState is the client-visible state of one search session.
type SearchState struct {
	Results    []SearchResult `json:"results"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
	TotalCount int            `json:"totalCount"`
	HasMore    bool           `json:"hasMore"`
}

// NewSearchState returns the initial empty state.
func NewSearchState() SearchState {
	return SearchState{Results: []SearchResult{}}
}

// Copy returns a snapshot whose result slice is independent of s.
func (s SearchState) Copy() SearchState {
	out := s
	out.Results = make([]SearchResult, len(s.Results))
	copy(out.Results, s.Results)
	return out
}
