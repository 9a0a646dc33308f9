package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/stretchr/testify/require"
)

const salesModel = `
models:
  - name: sales
    table: sales
    primary_key: voucher_no
    columns:
      - {name: voucher_no}
      - {name: voucher_date, type: date}
      - {name: customer_id}
      - {name: amount, column: total_amount, type: numeric}
  - name: customers
    table: customers
    primary_key: id
    columns:
      - {name: id}
      - {name: name}
metrics:
  - name: total_sales_amount
    model: sales
    expression: "SUM({amount})"
    description: Total invoiced sales value
dimensions:
  - {name: customer, model: customers, column: name}
  - {name: voucher_date, model: sales, column: voucher_date}
relationships:
  - {from: sales, from_column: customer_id, to: customers, to_column: id}
`

func TestRegistry_Parse(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)

	metric, err := reg.GetMetric("total_sales_amount")
	require.NoError(t, err)
	require.Equal(t, "sales", metric.Model)
	require.Equal(t, "SUM(sales.total_amount)", metric.Expression)

	dim, err := reg.GetDimension("customer")
	require.NoError(t, err)
	require.Equal(t, "customers.name", dim.Ref)

	model, err := reg.GetModel("sales")
	require.NoError(t, err)
	require.Equal(t, "voucher_no", model.PrimaryKey)
	col, ok := model.Column("amount")
	require.True(t, ok)
	require.Equal(t, "total_amount", col.Physical)

	require.Len(t, reg.Models(), 2)
	require.Equal(t, "sales", reg.Models()[0].Name)
	require.Equal(t, []string{"customer", "voucher_date"}, []string{reg.Dimensions()[0].Name, reg.Dimensions()[1].Name})
}

func TestRegistry_LookupNotFound(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)

	_, err = reg.GetMetric("profit_margin")
	var nf *registry.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "metric", nf.Kind)
	require.Equal(t, "profit_margin", nf.Name)

	_, err = reg.GetDimension("region")
	require.True(t, registry.IsNotFound(err))

	_, err = reg.GetModel("orders")
	require.True(t, registry.IsNotFound(err))
}

func TestRegistry_FindRelationshipIsDirectionAgnostic(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)

	fwd, ok := reg.FindRelationship("sales", "customers")
	require.True(t, ok)
	rev, ok := reg.FindRelationship("customers", "sales")
	require.True(t, ok)
	require.Same(t, fwd, rev)
	require.Equal(t, "sales.customer_id = customers.id", fwd.Condition)

	_, ok = reg.FindRelationship("sales", "stock_items")
	require.False(t, ok)
}

func TestRegistry_Describe(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)

	text := reg.Describe()
	require.Contains(t, text, "- total_sales_amount (model: sales): Total invoiced sales value")
	require.Contains(t, text, "- customer (model: customers)")
	require.Contains(t, text, "- sales <-> customers")
}

func TestRegistry_LoadRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	base := func(replace, with string) string {
		require.Contains(t, salesModel, replace)
		return strings.Replace(salesModel, replace, with, 1)
	}

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed yaml", "models: [", "failed to parse"},
		{"unknown field", base("primary_key: id", "primary_key: id\n    owner: finance"), "failed to parse"},
		{"no models", "metrics: []", "no models declared"},
		{"duplicate metric", base("dimensions:", "  - {name: total_sales_amount, model: sales, expression: \"SUM({amount})\"}\ndimensions:"), "declared twice"},
		{"metric on unknown model", base("model: sales\n    expression", "model: orders\n    expression"), "undeclared model"},
		{"placeholder not a column", base("SUM({amount})", "SUM({profit})"), `column "profit" is not declared`},
		{"bare identifier in expression", base("SUM({amount})", "SUM(total_amount)"), "bare identifier"},
		{"statement separator in expression", base("SUM({amount})", "SUM({amount}); DROP TABLE sales"), "not allowed"},
		{"comment in expression", base("SUM({amount})", "SUM({amount}) -- x"), "comments"},
		{"dimension column missing", base("column: name}", "column: email}"), "undeclared column"},
		{"relationship column missing", base("to_column: id}", "to_column: uuid}"), "undeclared column"},
		{"relationship to self", base("to: customers,", "to: sales,"), "to itself"},
		{"invalid table identifier", base("table: customers", "table: \"customers; drop\""), "not a valid identifier"},
		{"dimension shadows metric", base("{name: customer,", "{name: total_sales_amount,"), "same name as a metric"},
		{"expression without aggregate", base("SUM({amount})", "{amount}"), "does not aggregate"},
		{"malformed number in expression", base("SUM({amount})", "SUM({amount}) * 1.2.3"), "malformed number"},
		{"reserved dimension name", base("{name: customer,", "{name: order,"), "not a valid identifier"},
		{"reserved metric name", base("- name: total_sales_amount", "- name: select"), "not a valid identifier"},
		{"reserved table name", base("table: customers", "table: public.user"), "not a valid identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := registry.Parse([]byte(tt.doc))
			var sle *registry.SchemaLoadError
			require.ErrorAs(t, err, &sle)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistry_LoadFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		var sle *registry.SchemaLoadError
		require.ErrorAs(t, err, &sle)
		require.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("json document", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "model.json")
		doc := `{"models":[{"name":"sales","table":"public.sales","columns":[{"name":"amount","column":"total_amount"}]}],
"metrics":[{"name":"revenue","model":"sales","expression":"SUM({amount})"}]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		reg, err := registry.Load(path)
		require.NoError(t, err)
		m, err := reg.GetMetric("revenue")
		require.NoError(t, err)
		require.Equal(t, "SUM(public.sales.total_amount)", m.Expression)
		require.Equal(t, path, reg.Source())
	})

	t.Run("bundled model", func(t *testing.T) {
		t.Parallel()
		reg, err := registry.Load(filepath.Join("..", "..", "models", "sas.mdl.yaml"))
		require.NoError(t, err)

		m, err := reg.GetMetric("total_sales_amount")
		require.NoError(t, err)
		require.Equal(t, "SUM(sales.total_amount)", m.Expression)

		m, err = reg.GetMetric("stock_in_quantity")
		require.NoError(t, err)
		require.Equal(t, "SUM(CASE WHEN stock_movements.movement_type = 'IN' THEN stock_movements.quantity ELSE 0 END)", m.Expression)
	})
}

func TestRenderExpression(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)
	sales, err := reg.GetModel("sales")
	require.NoError(t, err)

	got, err := registry.RenderExpression("count(distinct {voucher_no})", sales)
	require.NoError(t, err)
	require.Equal(t, "COUNT(DISTINCT sales.voucher_no)", got)

	got, err = registry.RenderExpression("COUNT(*)", sales)
	require.NoError(t, err)
	require.Equal(t, "COUNT(*)", got)

	got, err = registry.RenderExpression("ROUND(SUM({amount}) / 1000.0, 2)", sales)
	require.NoError(t, err)
	require.Equal(t, "ROUND(SUM(sales.total_amount) / 1000.0, 2)", got)

	for _, bad := range []string{"", "SUM({amount}", "SUM({amount}))", "SUM({amount)", "SUM('open)", "pg_sleep(10)", `SUM("amount")`, "1", "{amount}", "{amount} * 2", "SUM({amount}) * 1.2.3", "SUM({amount}) + .", "2 * 3"} {
		_, err := registry.RenderExpression(bad, sales)
		require.Error(t, err, bad)
	}
}

type fakeCatalog map[string][]string

func (f fakeCatalog) TableColumns(_ context.Context, table string) ([]string, error) {
	return f[table], nil
}

func TestRegistry_VerifyCatalog(t *testing.T) {
	t.Parallel()

	reg, err := registry.Parse([]byte(salesModel))
	require.NoError(t, err)

	ok := fakeCatalog{
		"sales":     {"voucher_no", "voucher_date", "customer_id", "total_amount", "customer_name"},
		"customers": {"ID", "NAME", "created_at"},
	}
	require.NoError(t, reg.VerifyCatalog(context.Background(), ok))

	broken := fakeCatalog{
		"sales": {"voucher_no", "voucher_date", "customer_id"},
	}
	err = reg.VerifyCatalog(context.Background(), broken)
	var sle *registry.SchemaLoadError
	require.ErrorAs(t, err, &sle)
	require.Contains(t, err.Error(), "sales.total_amount")
	require.Contains(t, err.Error(), "table customers")
}
