package types

import "github.com/xtxerr/startree/config"

// Query specifies, for every configured dimension, either a concrete value
// or the Star wildcard. Dimensions left out of the map are treated as Star.
type Query struct {
	DimensionValues map[string]string
}

// NewQuery creates a query over the given dimension values.
func NewQuery(values map[string]string) Query {
	return Query{DimensionValues: copyStringMap(values)}
}

// AllStarQuery returns the query that aggregates over every dimension.
func AllStarQuery(dimensionNames []string) Query {
	values := make(map[string]string, len(dimensionNames))
	for _, name := range dimensionNames {
		values[name] = config.Star
	}
	return Query{DimensionValues: values}
}

// Value returns the query's value for a dimension, defaulting to Star.
func (q Query) Value(dimension string) string {
	if v, ok := q.DimensionValues[dimension]; ok {
		return v
	}
	return config.Star
}

// With returns a copy of the query with one dimension value replaced.
// The query walk uses this to rewrite a missing concrete value to Other.
func (q Query) With(dimension, value string) Query {
	out := NewQuery(q.DimensionValues)
	out.DimensionValues[dimension] = value
	return out
}

// Matches reports whether a record satisfies the query: every queried
// dimension is either Star or equal to the record's value.
func (q Query) Matches(r Record) bool {
	for dimension, want := range q.DimensionValues {
		if want == config.Star {
			continue
		}
		if r.Dimensions[dimension] != want {
			return false
		}
	}
	return true
}
