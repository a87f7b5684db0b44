package storage

import (
	"context"
	"fmt"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

// BucketRow is one grouped aggregation result. Value is set for BAR graphs,
// Min and Max for RANGE graphs.
type BucketRow struct {
	Key   int
	Value float64
	Min   float64
	Max   float64
}

// AggregateStore runs the read-only graph queries. It is built on the replica
// executor when one is configured.
type AggregateStore struct {
	db Executor
}

// NewAggregateStore creates an aggregate store
func NewAggregateStore(db Executor) *AggregateStore {
	return &AggregateStore{db: db}
}

// bucketExpr is the SQL expression of the bucket key for a granularity
func bucketExpr(g models.Granularity) (string, error) {
	switch g {
	case models.GranularityDay:
		return "EXTRACT(HOUR FROM session_time::time)", nil
	case models.GranularityWeek:
		return "EXTRACT(ISODOW FROM session_date)", nil
	case models.GranularityMonth:
		return "EXTRACT(DAY FROM session_date)", nil
	case models.GranularityYear:
		return "EXTRACT(MONTH FROM session_date)", nil
	}
	return "", fmt.Errorf("unknown granularity %q", g)
}

const windowFilter = `user_id = $1 AND tool_kit_id = $2 AND session_date BETWEEN $3 AND $4`

// BucketAggregate groups a user's answers in the window by bucket key.
// Buckets without answers are absent from the result.
func (s *AggregateStore) BucketAggregate(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, g models.Granularity, window models.DateWindow) ([]BucketRow, error) {
	if def.Graph == nil {
		return nil, fmt.Errorf("toolkit type %s has no graph", def.Type)
	}
	bucket, err := bucketExpr(g)
	if err != nil {
		return nil, err
	}

	var selectExpr string
	switch def.Graph.Shape {
	case models.GraphRange:
		selectExpr = fmt.Sprintf("MIN(%s)::float8 AS min_value, MAX(%s)::float8 AS max_value",
			def.Graph.RangeMinField, def.Graph.RangeMaxField)
	default:
		selectExpr = fmt.Sprintf("%s(%s)::float8 AS value", def.Graph.Aggregate, def.ValueField)
	}

	query := fmt.Sprintf(
		`SELECT %s::int AS bucket, %s
		FROM %s
		WHERE %s
		GROUP BY 1
		ORDER BY 1`,
		bucket, selectExpr, def.AnswerTable, windowFilter,
	)

	rows, err := s.db.Query(ctx, query, userID, toolkitID, dateOnly(window.Start), dateOnly(window.End))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s graph: %w", def.Type, err)
	}

	out := make([]BucketRow, 0, len(rows))
	for _, row := range rows {
		key, err := asInt64(row["bucket"])
		if err != nil {
			return nil, err
		}
		br := BucketRow{Key: int(key)}
		if br.Value, err = asFloat64(row["value"]); err != nil {
			return nil, err
		}
		if br.Min, err = asFloat64(row["min_value"]); err != nil {
			return nil, err
		}
		if br.Max, err = asFloat64(row["max_value"]); err != nil {
			return nil, err
		}
		out = append(out, br)
	}
	return out, nil
}

// ScatterPoints returns every individual value in the window with its x position.
// Within a day x is the fractional hour, otherwise the bucket key.
func (s *AggregateStore) ScatterPoints(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, g models.Granularity, window models.DateWindow) ([][2]float64, error) {
	xExpr := "ROUND((EXTRACT(HOUR FROM session_time::time) + EXTRACT(MINUTE FROM session_time::time) / 60.0)::numeric, 2)::float8"
	if g != models.GranularityDay {
		bucket, err := bucketExpr(g)
		if err != nil {
			return nil, err
		}
		xExpr = bucket + "::float8"
	}

	query := fmt.Sprintf(
		`SELECT %s AS x, %s::float8 AS y
		FROM %s
		WHERE %s
		ORDER BY session_date, session_time`,
		xExpr, def.ValueField, def.AnswerTable, windowFilter,
	)

	rows, err := s.db.Query(ctx, query, userID, toolkitID, dateOnly(window.Start), dateOnly(window.End))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s scatter points: %w", def.Type, err)
	}

	points := make([][2]float64, 0, len(rows))
	for _, row := range rows {
		x, err := asFloat64(row["x"])
		if err != nil {
			return nil, err
		}
		y, err := asFloat64(row["y"])
		if err != nil {
			return nil, err
		}
		points = append(points, [2]float64{x, y})
	}
	return points, nil
}

// AverageValue computes one declared average over the window; no rows yields 0
func (s *AggregateStore) AverageValue(ctx context.Context, def models.ToolkitDefinition, avg models.AverageSpec, userID, toolkitID string, window models.DateWindow) (float64, error) {
	query := fmt.Sprintf(
		`SELECT COALESCE(%s(%s), 0)::float8 AS value FROM %s WHERE %s`,
		avg.Aggregate, avg.Field, def.AnswerTable, windowFilter,
	)

	rows, err := s.db.Query(ctx, query, userID, toolkitID, dateOnly(window.Start), dateOnly(window.End))
	if err != nil {
		return 0, fmt.Errorf("failed to compute %s average %s: %w", def.Type, avg.Name, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asFloat64(rows[0]["value"])
}
