package model

// SortOrder selects ascending or descending order on the sort key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Direction returns the Mongo sort direction for o; anything but desc is ascending.
func (o SortOrder) Direction() int {
	if o == SortDesc {
		return -1
	}
	return 1
}

// PageInfo addresses one page of a listing.
type PageInfo struct {
	PageIndex int `form:"pageIndex" json:"pageIndex" binding:"min=0"`
	PageSize  int `form:"pageSize" json:"pageSize" binding:"omitempty,min=1,max=100"`
}

// ListQuery is the query string accepted by paginated listings.
type ListQuery struct {
	PageInfo
	Order SortOrder `form:"order" json:"order" binding:"omitempty,oneof=asc desc"`
}

// Normalize applies the default page size and clamps values into range.
func (p PageInfo) Normalize(defaultSize, maxSize int) PageInfo {
	if p.PageIndex < 0 {
		p.PageIndex = 0
	}
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p
}

// Skip is the number of items before the page.
func (p PageInfo) Skip() int64 {
	return int64(p.PageIndex) * int64(p.PageSize)
}

// Page is one slice of a sorted, filtered set. Total counts the whole set.
type Page[T any] struct {
	Items    []T      `json:"items"`
	Total    int64    `json:"total"`
	PageInfo PageInfo `json:"pageInfo"`
}
