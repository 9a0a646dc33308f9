package workflow

import (
	"testing"
	"time"

	apitesting "github.com/Avexra-AI/SAS-Chatbot/api/testing"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	chattesting "github.com/Avexra-AI/SAS-Chatbot/utils/pkg/testing"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/dberror"
	"github.com/stretchr/testify/require"
)

func compileIntent(t *testing.T, intent governance.Intent) compiler.Query {
	t.Helper()
	v, err := governance.Validate(intent, loadRegistry(t))
	require.NoError(t, err)
	q, err := compiler.Compile(v)
	require.NoError(t, err)
	return q
}

func byColumn(rs ResultSet, key, value string) map[string]any {
	out := make(map[string]any, len(rs.Rows))
	for _, row := range rs.Rows {
		out[row[key].(string)] = row[value]
	}
	return out
}

func TestPostgresQuerier_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	apitesting.SkipWithoutDB(t, testDB)

	pool := apitesting.NewSASDatabase(t, testDB, "querier_it")
	q := NewPostgresQuerier(chattesting.NewLogger(), pool, 10*time.Second, 0)

	t.Run("sales by customer", func(t *testing.T) {
		rs, err := q.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "total_sales_amount",
			Dimensions: []string{"customer"},
		}))
		require.NoError(t, err)
		require.Equal(t, []string{"total_sales_amount", "customer"}, rs.Columns)
		require.Equal(t, map[string]any{
			"Alice Traders": 2200.5,
			"Bob Stores":    320.0,
			"Carol & Co":    250.0,
		}, byColumn(rs, "customer", "total_sales_amount"))
	})

	t.Run("kpi with bound filter", func(t *testing.T) {
		rs, err := q.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "order_count",
			Dimensions: []string{},
			Filters:    map[string]any{"customer": "Alice Traders"},
		}))
		require.NoError(t, err)
		require.Len(t, rs.Rows, 1)
		require.Equal(t, int64(2), rs.Rows[0]["order_count"])
	})

	t.Run("filter value is never inlined", func(t *testing.T) {
		rs, err := q.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "order_count",
			Dimensions: []string{},
			Filters:    map[string]any{"customer": "x' OR '1'='1"},
		}))
		require.NoError(t, err)
		require.Equal(t, int64(0), rs.Rows[0]["order_count"])
	})

	t.Run("dates and signed stock movement", func(t *testing.T) {
		rs, err := q.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "net_stock_movement",
			Dimensions: []string{"stock_item"},
		}))
		require.NoError(t, err)
		require.Equal(t, map[string]any{
			"Rice 25kg": int64(35),
			"Sugar 1kg": int64(-114),
			"Tea 250g":  int64(7),
		}, byColumn(rs, "stock_item", "net_stock_movement"))

		rs, err = q.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "total_sales_amount",
			Dimensions: []string{"voucher_date"},
		}))
		require.NoError(t, err)
		require.Contains(t, byColumn(rs, "voucher_date", "total_sales_amount"), "2024-03-01")
	})

	t.Run("row cap", func(t *testing.T) {
		capped := NewPostgresQuerier(chattesting.NewLogger(), pool, 10*time.Second, 2)
		rs, err := capped.Query(t.Context(), compileIntent(t, governance.Intent{
			Metric:     "line_item_revenue",
			Dimensions: []string{"voucher_no"},
		}))
		require.NoError(t, err)
		require.Len(t, rs.Rows, 2)
	})

	t.Run("execution error is classified", func(t *testing.T) {
		_, err := q.Query(t.Context(), compiler.Query{SQL: "SELECT SUM(total_amount) FROM missing_table"})
		var ee *ExecutionError
		require.ErrorAs(t, err, &ee)
		require.Equal(t, dberror.ErrorTypeQuery, dberror.Classify(err))
	})

	t.Run("catalog", func(t *testing.T) {
		reg := loadRegistry(t)
		require.NoError(t, reg.VerifyCatalog(t.Context(), NewPostgresCatalog(pool)))

		cols, err := NewPostgresCatalog(pool).TableColumns(t.Context(), "public.sales")
		require.NoError(t, err)
		require.Equal(t, []string{"voucher_no", "voucher_date", "customer_id", "total_amount"}, cols)
	})
}
