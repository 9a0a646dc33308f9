//go:build evals

package evals_test

import (
	"testing"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/visualization"
	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/stretchr/testify/require"
)

func TestSAS_Agent_Evals_Anthropic_SalesByCustomer(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, "eval_sales_by_customer")

	result, err := p.Run(t.Context(), "What are total sales for each customer?", nil)
	require.NoError(t, err)
	t.Logf("answer: %s\nsql: %s", result.Answer, result.SQL)

	require.Empty(t, result.Error)
	require.NotNil(t, result.Intent)
	require.Equal(t, "total_sales_amount", result.Intent.Metric)
	require.Equal(t, []string{"customer"}, result.Intent.Dimensions)
	require.Len(t, result.Data, 3)
	require.Equal(t, visualization.TypeBar, result.Visualization.Type)
	require.Contains(t, result.Answer, "Alice")
	require.InDelta(t, 0.95, result.Confidence, 1e-9)
}

func TestSAS_Agent_Evals_Anthropic_OrderCountKPI(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, "eval_order_count")

	result, err := p.Run(t.Context(), "How many sales orders do we have in total?", nil)
	require.NoError(t, err)
	t.Logf("answer: %s\nsql: %s", result.Answer, result.SQL)

	require.Empty(t, result.Error)
	require.Equal(t, "order_count", result.Intent.Metric)
	require.Empty(t, result.Intent.Dimensions)
	require.Len(t, result.Data, 1)
	require.Equal(t, int64(4), result.Data[0]["order_count"])
	require.Equal(t, visualization.TypeKPI, result.Visualization.Type)
}

func TestSAS_Agent_Evals_Anthropic_FollowUpAddsFilter(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, "eval_followup")

	first, err := p.Run(t.Context(), "Show me total sales by customer", nil)
	require.NoError(t, err)
	require.Empty(t, first.Error)

	history := []workflow.ConversationTurn{{Question: "Show me total sales by customer", Intent: *first.Intent}}
	result, err := p.Run(t.Context(), "Now just for Alice Traders", history)
	require.NoError(t, err)
	t.Logf("answer: %s\nsql: %s", result.Answer, result.SQL)

	require.Empty(t, result.Error)
	require.Equal(t, "total_sales_amount", result.Intent.Metric)
	require.Equal(t, "Alice Traders", result.Intent.Filters["customer"])
	require.Len(t, result.Data, 1)
}

func TestSAS_Agent_Evals_Anthropic_NetStockByItem(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, "eval_net_stock")

	result, err := p.Run(t.Context(), "What is the net stock movement for each stock item?", nil)
	require.NoError(t, err)
	t.Logf("answer: %s\nsql: %s", result.Answer, result.SQL)

	require.Empty(t, result.Error)
	require.Equal(t, "net_stock_movement", result.Intent.Metric)
	require.Equal(t, []string{"stock_item"}, result.Intent.Dimensions)
	require.Len(t, result.Data, 3)
}

func TestSAS_Agent_Evals_Anthropic_UnrelatedQuestion(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, "eval_unrelated")

	result, err := p.Run(t.Context(), "What is the weather going to be like in Paris tomorrow?", nil)
	require.NoError(t, err)
	t.Logf("answer: %s\nerror: %s", result.Answer, result.Error)

	require.Equal(t, workflow.UnansweredMessage, result.Answer)
	require.NotEmpty(t, result.Error)
	require.Empty(t, result.SQL)
	require.InDelta(t, 0.2, result.Confidence, 1e-9)
}
