package history_test

import (
	"fmt"
	"testing"

	"github.com/Avexra-AI/SAS-Chatbot/api/history"
	apitesting "github.com/Avexra-AI/SAS-Chatbot/api/testing"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	chattesting "github.com/Avexra-AI/SAS-Chatbot/utils/pkg/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()
	apitesting.SkipWithoutDB(t, testDB)
	pool := apitesting.SetupTestDB(t, testDB)
	apitesting.Truncate(t, pool, "chat_history")
	return history.NewStore(chattesting.NewLogger(), pool)
}

func TestStore_RecentIsOldestFirst(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	session := uuid.New()

	for i := range 7 {
		intent := governance.Intent{Metric: "total_sales_amount", Dimensions: []string{fmt.Sprintf("dim_%d", i)}}
		require.NoError(t, store.Save(ctx, session, fmt.Sprintf("question %d", i), intent))
	}

	turns, err := store.Recent(ctx, session, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "question 4", turns[0].Question)
	require.Equal(t, "question 6", turns[2].Question)
	require.Equal(t, []string{"dim_6"}, turns[2].Intent.Dimensions)

	turns, err = store.Recent(ctx, session, 0)
	require.NoError(t, err)
	require.Len(t, turns, history.DefaultLimit)
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, store.Save(ctx, a, "sales by customer", governance.Intent{
		Metric:     "total_sales_amount",
		Dimensions: []string{"customer"},
		Filters:    map[string]any{"voucher_date": "2024-01-01"},
	}))

	turns, err := store.Recent(ctx, b, 5)
	require.NoError(t, err)
	require.Empty(t, turns)

	turns, err = store.Recent(ctx, a, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "2024-01-01", turns[0].Intent.Filters["voucher_date"])

	require.NoError(t, store.Clear(ctx, a))
	turns, err = store.Recent(ctx, a, 5)
	require.NoError(t, err)
	require.Empty(t, turns)
}
