package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBuilder_ToSQL(t *testing.T) {
	tests := []struct {
		name         string
		builder      func() *SelectBuilder
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:        "all columns",
			builder:     func() *SelectBuilder { return Select().From("alerts") },
			expectedSQL: "SELECT * FROM alerts",
		},
		{
			name: "scoped breach list",
			builder: func() *SelectBuilder {
				return Select("id", "status").From("potential_breaches").
					WhereEqual("agent_id", "agent-1").
					Where("risk_level", Any, []string{"high", "medium"}).
					OrderBy("detection_date", Desc).
					OrderBy("id", Asc).
					Limit(50).
					Offset(100)
			},
			expectedSQL:  "SELECT id, status FROM potential_breaches WHERE agent_id = $1 AND risk_level = ANY($2) ORDER BY detection_date DESC, id LIMIT $3 OFFSET $4",
			expectedArgs: []any{"agent-1", []string{"high", "medium"}, 50, 100},
		},
		{
			name: "skipped optional filter",
			builder: func() *SelectBuilder {
				return Select("id").From("potential_breaches").
					WhereIf(false, "status", Equal, "pending").
					WhereIf(true, "detection_date", GreaterOrEqual, "2024-01-01")
			},
			expectedSQL:  "SELECT id FROM potential_breaches WHERE detection_date >= $1",
			expectedArgs: []any{"2024-01-01"},
		},
		{
			name: "boolean column takes no argument",
			builder: func() *SelectBuilder {
				return Select("id").From("alerts").
					WhereEqual("agent_id", "agent-1").
					WhereTrue("read", false).
					Limit(10)
			},
			expectedSQL:  "SELECT id FROM alerts WHERE agent_id = $1 AND NOT read LIMIT $2",
			expectedArgs: []any{"agent-1", 10},
		},
		{
			name: "fixed projection",
			builder: func() *SelectBuilder {
				return Project("id, COALESCE(property_id, '')").From("potential_breaches").WhereEqual("id", "x")
			},
			expectedSQL:  "SELECT id, COALESCE(property_id, '') FROM potential_breaches WHERE id = $1",
			expectedArgs: []any{"x"},
		},
		{
			name: "joined listing with qualified columns",
			builder: func() *SelectBuilder {
				return Project("potential_breaches.id, contracts.client_name").From("potential_breaches").
					Join("contracts", "contracts.id = potential_breaches.contract_id").
					WhereEqual("potential_breaches.agent_id", "agent-1").
					OrderBy("potential_breaches.detection_date", Desc)
			},
			expectedSQL: "SELECT potential_breaches.id, contracts.client_name FROM potential_breaches " +
				"JOIN contracts ON contracts.id = potential_breaches.contract_id " +
				"WHERE potential_breaches.agent_id = $1 ORDER BY potential_breaches.detection_date DESC",
			expectedArgs: []any{"agent-1"},
		},
		{
			name: "remaining operators",
			builder: func() *SelectBuilder {
				return Select("id").From("contracts").
					Where("a", NotEqual, 1).
					Where("b", GreaterThan, 2).
					Where("c", LessThan, 3).
					Where("d", LessOrEqual, 4)
			},
			expectedSQL:  "SELECT id FROM contracts WHERE a <> $1 AND b > $2 AND c < $3 AND d <= $4",
			expectedArgs: []any{1, 2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.builder().ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSQL, sql)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestSelectBuilder_RejectsUnsafeIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		builder *SelectBuilder
	}{
		{name: "missing table", builder: Select("id")},
		{name: "table injection", builder: Select().From("alerts; DROP TABLE alerts")},
		{name: "column injection", builder: Select("id, pg_sleep(1)").From("alerts")},
		{name: "where column", builder: Select().From("alerts").WhereEqual("1=1 OR agent_id", "x")},
		{name: "order column", builder: Select().From("alerts").OrderBy("created_at desc;", Asc)},
		{name: "join table", builder: Select().From("alerts").Join("contracts c; --", "true")},
		{name: "join without condition", builder: Select().From("alerts").Join("contracts", " ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.builder.ToSQL()
			assert.Error(t, err)
		})
	}
}
