package listing

import (
	"fmt"
	"strings"

	"github.com/sells-group/property-map/internal/model"
)

// queryBuilder accumulates positional WHERE conditions for Postgres.
type queryBuilder struct {
	conditions []string
	args       []any
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{
		conditions: []string{"status = 'active'"},
	}
}

// add appends a condition whose %d verbs are replaced by the next positional
// argument numbers, one per supplied arg.
func (qb *queryBuilder) add(condition string, args ...any) {
	nums := make([]any, len(args))
	for i := range args {
		nums[i] = len(qb.args) + i + 1
	}
	qb.conditions = append(qb.conditions, fmt.Sprintf(condition, nums...))
	qb.args = append(qb.args, args...)
}

func (qb *queryBuilder) addFilters(f model.FilterCriteria) {
	if f.MinPrice != nil {
		qb.add("price_value >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		qb.add("price_value <= $%d", *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		qb.add("bedrooms >= $%d", *f.MinBedrooms)
	}
	if f.PropertyType != "" {
		qb.add("property_type = $%d", string(f.PropertyType))
	}
}

func (qb *queryBuilder) where() string {
	return "WHERE " + strings.Join(qb.conditions, " AND ")
}
