package domain

// Filter is a single {field, operator, value} predicate.
type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value,omitempty"`
	HighValue    string   `json:"highValue,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// FilterGroup is a conjunction of filters. Groups are OR'd together.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Sort orders results by one property value or createdAt.
type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"` // ASCENDING or DESCENDING
}

// SearchRequest is OR-of-ANDs filtering plus a substring query against the
// search vector, with id-cursor pagination.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups,omitempty"`
	Query        string        `json:"query,omitempty"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	After        string        `json:"after,omitempty"`
}

// SearchPagingNext holds the cursor for the next page.
type SearchPagingNext struct {
	After string `json:"after"`
}

// SearchPaging wraps the next-page cursor.
type SearchPaging struct {
	Next SearchPagingNext `json:"next"`
}

// SearchResult is a page of matching records.
type SearchResult struct {
	Total   int           `json:"total"`
	Results []*Record     `json:"results"`
	Paging  *SearchPaging `json:"paging,omitempty"`
}
