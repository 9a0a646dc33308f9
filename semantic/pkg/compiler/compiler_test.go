package compiler_test

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(filepath.Join("..", "..", "models", "sas.mdl.yaml"))
	require.NoError(t, err)
	return reg
}

func compile(t *testing.T, reg *registry.Registry, intent governance.Intent) compiler.Query {
	t.Helper()
	v, err := governance.Validate(intent, reg)
	require.NoError(t, err)
	q, err := compiler.Compile(v)
	require.NoError(t, err)
	return q
}

func TestCompile_MetricByCustomer(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	q := compile(t, reg, governance.Intent{Metric: "total_sales_amount", Dimensions: []string{"customer"}})

	require.Equal(t, strings.Join([]string{
		"SELECT SUM(sales.total_amount) AS total_sales_amount, customers.name AS customer",
		"FROM sales",
		"JOIN customers ON sales.customer_id = customers.id",
		"GROUP BY customers.name",
	}, "\n"), q.SQL)
	require.Empty(t, q.Args)
}

func TestCompile_ZeroDimensions(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	q := compile(t, reg, governance.Intent{Metric: "order_count"})
	require.Equal(t, "SELECT COUNT(DISTINCT sales.voucher_no) AS order_count\nFROM sales", q.SQL)
	require.NotContains(t, q.SQL, "JOIN")
	require.NotContains(t, q.SQL, "GROUP BY")
}

func TestCompile_SharedModelJoinedOnce(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	q := compile(t, reg, governance.Intent{
		Metric:     "net_stock_movement",
		Dimensions: []string{"stock_item", "movement_date"},
		Filters:    map[string]any{"stock_item": "Widget"},
	})
	require.Equal(t, 1, strings.Count(q.SQL, "JOIN stock_items"))
	require.Contains(t, q.SQL, "GROUP BY stock_items.item_name, stock_movements.movement_date")
	require.Contains(t, q.SQL, "WHERE stock_items.item_name = $1")
	require.Equal(t, []any{"Widget"}, q.Args)
}

func TestCompile_FiltersAreBound(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	hostile := "x'; DROP TABLE sales; --"
	q := compile(t, reg, governance.Intent{
		Metric:     "total_sales_amount",
		Dimensions: []string{"voucher_date"},
		Filters:    map[string]any{"voucher_no": "V-7", "customer": hostile},
	})
	require.Equal(t, strings.Join([]string{
		"SELECT SUM(sales.total_amount) AS total_sales_amount, sales.voucher_date AS voucher_date",
		"FROM sales",
		"JOIN customers ON sales.customer_id = customers.id",
		"WHERE customers.name = $1 AND sales.voucher_no = $2",
		"GROUP BY sales.voucher_date",
	}, "\n"), q.SQL)
	require.Equal(t, []any{hostile, "V-7"}, q.Args)
	require.NotContains(t, q.SQL, "DROP")
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	intent := governance.Intent{
		Metric:     "total_quantity_sold",
		Dimensions: []string{"voucher_date", "stock_item"},
		Filters:    map[string]any{"voucher_no": "A", "stock_item": "B", "item_name": "C"},
	}
	first := compile(t, reg, intent)
	for range 20 {
		require.Equal(t, first, compile(t, reg, intent))
	}
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?`)

var keywords = map[string]bool{
	"SELECT": true, "AS": true, "FROM": true, "JOIN": true, "ON": true, "WHERE": true,
	"AND": true, "GROUP": true, "BY": true,
	"SUM": true, "COUNT": true, "DISTINCT": true, "AVG": true, "ROUND": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
}

// Every identifier in any compiled query must be a keyword, a declared
// table or qualified column, or a metric/dimension alias.
func TestCompile_OnlyRegisteredIdentifiers(t *testing.T) {
	t.Parallel()
	reg := loadRegistry(t)

	known := map[string]bool{}
	for _, m := range reg.Models() {
		known[m.Table] = true
		for _, c := range m.Columns {
			known[m.Ref(c)] = true
		}
	}
	for _, m := range reg.Metrics() {
		known[m.Name] = true
	}
	for _, d := range reg.Dimensions() {
		known[d.Name] = true
	}

	for _, metric := range reg.Metrics() {
		for _, dim := range append([]*registry.Dimension{nil}, reg.Dimensions()...) {
			intent := governance.Intent{Metric: metric.Name}
			if dim != nil {
				intent.Dimensions = []string{dim.Name}
			}
			v, err := governance.Validate(intent, reg)
			if err != nil {
				require.True(t, governance.IsGovernanceError(err))
				continue
			}
			q, err := compiler.Compile(v)
			require.NoError(t, err)

			base := v.BaseModel()
			lines := strings.Split(q.SQL, "\n")
			require.Equal(t, "FROM "+base.Table, lines[1])
			for _, lit := range regexp.MustCompile(`'[^']*'`).FindAllString(q.SQL, -1) {
				q.SQL = strings.ReplaceAll(q.SQL, lit, "")
			}
			for _, id := range identRe.FindAllString(q.SQL, -1) {
				require.True(t, keywords[id] || known[id], "unexpected identifier %q in %s", id, q.SQL)
			}
		}
	}
}

func TestCompile_NilIntent(t *testing.T) {
	t.Parallel()
	_, err := compiler.Compile(nil)
	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
}
