package flickr

/*
PhotoDescriptor is one search hit. The download URL for the actual
image bytes derives from Server, ID, and Secret.
*/
type PhotoDescriptor struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Secret string `json:"secret"`
	Server string `json:"server"`
	Title  string `json:"title"`
}

/*
searchPage mirrors the wire shape of a photos.search response page.
The API serializes pages and total as strings.
*/
type searchPage struct {
	Page    int               `json:"page"`
	Pages   string            `json:"pages"`
	PerPage int               `json:"perpage"`
	Total   string            `json:"total"`
	Photo   []PhotoDescriptor `json:"photo"`
}

type searchEnvelope struct {
	Photos searchPage `json:"photos"`
	Stat   string     `json:"stat"`
}

/*
SearchResult is one decoded page of search hits plus the paging
numbers for the whole query.
*/
type SearchResult struct {
	Descriptors []PhotoDescriptor
	Page        int
	Pages       int
	PerPage     int
	Total       float64
}
