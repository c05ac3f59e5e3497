package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// setupTestRepo starts a disposable PostgreSQL container.
// Set PG_INTEGRATION=1 to run; the tests need a docker daemon.
func setupTestRepo(t *testing.T) *Repo {
	t.Helper()
	if os.Getenv("PG_INTEGRATION") == "" {
		t.Skip("PG_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = repo.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return repo
}

func testPair(addr, name string) *model.Pair {
	price := decimal.RequireFromString("0.000123")
	liq := 1500.5
	return &model.Pair{
		ChainID:     "solana",
		PairAddress: "P" + addr,
		BaseToken:   model.Token{Address: addr, Name: name, Symbol: name[:3]},
		PriceUSD:    &price,
		Liquidity:   &model.Liquidity{USD: &liq},
	}
}

func TestRepo_SubscriberLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateSubscriber(ctx, &model.Subscriber{ID: "42", FilterURL: "https://x.test/a"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateSubscriber(ctx, &model.Subscriber{ID: "42", FilterURL: "https://x.test/b"})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.UpdateFilterURL(ctx, "42", "https://x.test/c"))
	s, err := repo.GetSubscriber(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/c", s.FilterURL)

	assert.ErrorIs(t, repo.UpdateFilterURL(ctx, "nobody", "u"), port.ErrSubscriberNotFound)
	_, err = repo.GetSubscriber(ctx, "nobody")
	assert.ErrorIs(t, err, port.ErrSubscriberNotFound)

	set, err := repo.GetInterestSet(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestRepo_PairsAndSweep(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a, err := repo.UpsertPair(ctx, testPair("AAAmint", "Alpha"))
	require.NoError(t, err)
	b, err := repo.UpsertPair(ctx, testPair("BBBmint", "Bravo"))
	require.NoError(t, err)
	again, err := repo.UpsertPair(ctx, testPair("AAAmint", "Alphabet"))
	require.NoError(t, err)
	assert.Equal(t, a, again)

	pairs, err := repo.GetPairs(ctx, []model.RecordID{a, b})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Alphabet", pairs[0].Name)
	require.NotNil(t, pairs[0].PriceUSD)
	assert.True(t, pairs[0].PriceUSD.Equal(decimal.RequireFromString("0.000123")))
	require.NotNil(t, pairs[0].LiquidityUSD)
	assert.InDelta(t, 1500.5, *pairs[0].LiquidityUSD, 1e-9)
	assert.Nil(t, pairs[0].Volume24h)

	_, err = repo.CreateSubscriber(ctx, &model.Subscriber{ID: "7", FilterURL: "u"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceInterestSet(ctx, "7", model.NewIDSet(a)))

	used, err := repo.AllInterestMembers(ctx)
	require.NoError(t, err)
	assert.True(t, used.Has(a))
	assert.False(t, used.Has(b))

	n, err := repo.DeleteRecordsNotIn(ctx, used)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	pairs, err = repo.GetPairs(ctx, []model.RecordID{a, b})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, a, pairs[0].ID)
}

func TestRepo_Credentials(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := model.Credentials{ClearanceToken: "tok", UserAgent: "ua/1"}
	require.NoError(t, repo.SaveCredentials(ctx, want))
	require.NoError(t, repo.SaveCredentials(ctx, want))

	got, ok, err := repo.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
