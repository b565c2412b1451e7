package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SortType orders a listing by its key column.
type SortType string

const (
	SortTypeAscending  SortType = "asc"
	SortTypeDescending SortType = "desc"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ListOptions pages and orders a listing. A zero Limit selects the default
// page size and larger limits are capped.
type ListOptions struct {
	Offset uint32
	Limit  uint32
	Sort   *SortType // nil uses the listing's default
}

func pageSize(limit uint32) int {
	switch {
	case limit == 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return int(limit)
}

func paginate(offset, limit uint32) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(int(offset)).Limit(pageSize(limit))
	}
}

// applyListOptions orders by column and, when options are given, pages.
// Without options the whole listing is returned.
func applyListOptions(db *gorm.DB, column string, defaultSort SortType, options *ListOptions) *gorm.DB {
	sort := defaultSort
	if options != nil && options.Sort != nil {
		sort = *options.Sort
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: sort == SortTypeDescending})
	if options == nil {
		return db
	}
	return db.Scopes(paginate(options.Offset, options.Limit))
}
