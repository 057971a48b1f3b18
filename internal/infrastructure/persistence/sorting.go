package persistence

import (
	"slices"
	"strings"

	"github.com/medistore/backend/internal/domain/shared"
	"gorm.io/gorm/clause"
)

// orderSortColumns are the columns an order listing may sort by
var orderSortColumns = []string{"created_at", "total", "id"}

// orderBy turns the filter's sort request into an ORDER BY clause. Unknown
// columns fall back to the first allowed column and any direction other
// than asc sorts descending, so user input never reaches the SQL text.
func orderBy(filter shared.Filter, allowed []string) clause.OrderByColumn {
	column := strings.TrimSpace(filter.OrderBy)
	if !slices.Contains(allowed, column) {
		column = allowed[0]
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc"),
	}
}
