// Package paginate filters and pages through a record collection.
package paginate

import "headlines/internal/model"

// Page size bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter restricts which records are paged. Zero values match everything.
type Filter struct {
	Kind     model.Kind
	Category model.Category
}

func (f Filter) match(r model.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	return true
}

// Page is one page of records plus totals for the filtered collection.
type Page struct {
	Items       []model.Record `json:"items"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	TotalPages  int            `json:"totalPages"`
	HasNextPage bool           `json:"hasNextPage"`
	HasPrevPage bool           `json:"hasPrevPage"`
}

// Normalize clamps page and pageSize into their valid ranges.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages uses ceiling division and is always at least 1.
func TotalPages(total, pageSize int) int {
	if total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate returns the requested 1-based page of the records that match f.
// A page past the end has no items but accurate totals.
func Paginate(records []model.Record, f Filter, page, pageSize int) Page {
	page, pageSize = Normalize(page, pageSize)

	matched := make([]model.Record, 0, len(records))
	for _, r := range records {
		if f.match(r) {
			matched = append(matched, r)
		}
	}

	total := len(matched)
	totalPages := TotalPages(total, pageSize)
	items := []model.Record{}
	// Compare pages before multiplying: a huge page number overflows the offset.
	if page <= totalPages {
		offset := (page - 1) * pageSize
		end := min(offset+pageSize, total)
		items = model.CloneRecords(matched[offset:end])
	}

	return Page{
		Items:       items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Partition splits records by kind, preserving order.
func Partition(records []model.Record) (news, social []model.Record) {
	news = []model.Record{}
	social = []model.Record{}
	for _, r := range records {
		if r.Kind == model.KindSocial {
			social = append(social, r)
		} else {
			news = append(news, r)
		}
	}
	return news, social
}
