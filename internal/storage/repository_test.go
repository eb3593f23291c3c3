package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"penny/internal/core"
	"penny/internal/log"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

func (suite *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(":memory:", log.New(log.DefaultConfig()))
	require.NoError(suite.T(), err, "failed to create test database")
	suite.repo = repo
	suite.ctx = context.Background()
}

func (suite *RepositoryTestSuite) TearDownTest() {
	if suite.repo != nil {
		suite.repo.Close()
	}
}

func (suite *RepositoryTestSuite) createUser(email string) core.User {
	user, err := suite.repo.CreateUser(suite.ctx, email, "Test User", "hash")
	require.NoError(suite.T(), err)
	return user
}

func (suite *RepositoryTestSuite) TestCreateUserSeedsDefaultCategories() {
	user := suite.createUser("alice@example.com")
	assert.NotEmpty(suite.T(), user.ID)
	assert.Equal(suite.T(), core.CanonicalCurrency, user.Currency)

	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), categories, len(core.DefaultCategories))
	for _, c := range categories {
		assert.True(suite.T(), c.IsDefault)
		assert.Equal(suite.T(), int64(0), c.MonthlyBudget.Cents)
	}
}

func (suite *RepositoryTestSuite) TestCreateUserDuplicateEmail() {
	suite.createUser("alice@example.com")
	_, err := suite.repo.CreateUser(suite.ctx, "Alice@Example.com", "Other", "hash")
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateEmail)
}

func (suite *RepositoryTestSuite) TestGetCredentials() {
	user := suite.createUser("alice@example.com")

	got, hash, err := suite.repo.GetCredentials(suite.ctx, "alice@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, got.ID)
	assert.Equal(suite.T(), "hash", hash)

	_, _, err = suite.repo.GetCredentials(suite.ctx, "nobody@example.com")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestUpdateUserSettingsPartial() {
	user := suite.createUser("alice@example.com")

	currency := "EUR"
	updated, err := suite.repo.UpdateUserSettings(suite.ctx, user.ID, SettingsUpdate{Currency: &currency})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "EUR", updated.Currency)
	assert.Equal(suite.T(), user.Name, updated.Name, "name should keep its stored value")
	assert.Equal(suite.T(), user.Theme, updated.Theme)

	theme := "dark"
	name := "Alice"
	updated, err = suite.repo.UpdateUserSettings(suite.ctx, user.ID, SettingsUpdate{Name: &name, Theme: &theme})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Alice", updated.Name)
	assert.Equal(suite.T(), "dark", updated.Theme)
	assert.Equal(suite.T(), "EUR", updated.Currency, "currency should survive later updates")
}

func (suite *RepositoryTestSuite) TestCreateCategoryDuplicateName() {
	user := suite.createUser("alice@example.com")

	_, err := suite.repo.CreateCategory(suite.ctx, core.Category{
		UserID: user.ID,
		Name:   "Travel",
	})
	require.NoError(suite.T(), err)

	_, err = suite.repo.CreateCategory(suite.ctx, core.Category{
		UserID: user.ID,
		Name:   "Travel",
	})
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateCategory)

	// Same name under another user is fine.
	bob := suite.createUser("bob@example.com")
	_, err = suite.repo.CreateCategory(suite.ctx, core.Category{
		UserID: bob.ID,
		Name:   "Travel",
	})
	assert.NoError(suite.T(), err)
}

func (suite *RepositoryTestSuite) TestDeleteCategoryRules() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	// Default categories cannot be deleted.
	err = suite.repo.DeleteCategory(suite.ctx, user.ID, categories[0].ID)
	assert.ErrorIs(suite.T(), err, core.ErrCategoryDefault)

	travel, err := suite.repo.CreateCategory(suite.ctx, core.Category{UserID: user.ID, Name: "Travel"})
	require.NoError(suite.T(), err)

	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     user.ID,
		CategoryID: travel.ID,
		Amount:     core.Money{Cents: 4000},
		Date:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)

	// A category with transactions cannot be deleted.
	err = suite.repo.DeleteCategory(suite.ctx, user.ID, travel.ID)
	assert.ErrorIs(suite.T(), err, core.ErrCategoryInUse)

	empty, err := suite.repo.CreateCategory(suite.ctx, core.Category{UserID: user.ID, Name: "Empty"})
	require.NoError(suite.T(), err)
	assert.NoError(suite.T(), suite.repo.DeleteCategory(suite.ctx, user.ID, empty.ID))
}

func (suite *RepositoryTestSuite) TestTransactionsAreOwnerScoped() {
	alice := suite.createUser("alice@example.com")
	bob := suite.createUser("bob@example.com")

	aliceCategories, err := suite.repo.ListCategories(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)

	// Bob cannot book spend into Alice's category.
	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     bob.ID,
		CategoryID: aliceCategories[0].ID,
		Amount:     core.Money{Cents: 1000},
		Date:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	tx, err := suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     alice.ID,
		CategoryID: aliceCategories[0].ID,
		Amount:     core.Money{Cents: 1250},
		Date:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)

	// Bob cannot read or delete it either.
	_, err = suite.repo.GetTransaction(suite.ctx, bob.ID, tx.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
	assert.ErrorIs(suite.T(), suite.repo.DeleteTransaction(suite.ctx, bob.ID, tx.ID), core.ErrNotFound)

	got, err := suite.repo.GetTransaction(suite.ctx, alice.ID, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1250), got.Amount.Cents)
	assert.Equal(suite.T(), aliceCategories[0].Name, got.CategoryName)
}

func (suite *RepositoryTestSuite) TestListTransactionsByMonth() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	dates := []time.Time{
		time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		_, err := suite.repo.CreateTransaction(suite.ctx, core.Transaction{
			UserID:     user.ID,
			CategoryID: categories[0].ID,
			Amount:     core.Money{Cents: 500},
			Date:       d,
		})
		require.NoError(suite.T(), err)
	}

	august, err := suite.repo.ListTransactionsByMonth(suite.ctx, user.ID, "2026-08")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), august, 2)
	assert.Equal(suite.T(), "2026-08-20", august[0].Date.Format("2006-01-02"), "newest first")

	july, err := suite.repo.ListTransactionsByMonth(suite.ctx, user.ID, "2026-07")
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), july, 1)
}

func (suite *RepositoryTestSuite) TestMonthlyInsights() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	food := categories[0]
	require.NoError(suite.T(), suite.repo.UpdateCategoryBudget(suite.ctx, user.ID, food.ID, core.Money{Cents: 50000}))

	travel, err := suite.repo.CreateCategory(suite.ctx, core.Category{
		UserID:        user.ID,
		Name:          "Travel",
		MonthlyBudget: core.Money{Cents: 20000},
	})
	require.NoError(suite.T(), err)

	entries := []struct {
		category  int64
		cents     int64
		recurring bool
	}{
		{food.ID, 12000, true},
		{food.ID, 3000, false},
		{travel.ID, 4000, false},
	}
	for _, e := range entries {
		_, err := suite.repo.CreateTransaction(suite.ctx, core.Transaction{
			UserID:      user.ID,
			CategoryID:  e.category,
			Amount:      core.Money{Cents: e.cents},
			Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
			IsRecurring: e.recurring,
		})
		require.NoError(suite.T(), err)
	}

	insights, err := suite.repo.MonthlyInsights(suite.ctx, user.ID, "2026-08")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), int64(70000), insights.TotalBudget.Cents)
	assert.Equal(suite.T(), int64(19000), insights.TotalSpent.Cents)
	assert.Equal(suite.T(), int64(51000), insights.Remaining.Cents)
	assert.Equal(suite.T(), insights.TotalSpent.Cents, insights.Recurring.Cents+insights.NonRecurring.Cents)
	assert.Equal(suite.T(), int64(12000), insights.Recurring.Cents)

	// Every category appears, spend or not, and per-category spend sums
	// to the total.
	assert.Len(suite.T(), insights.CategorySpending, len(core.DefaultCategories)+1)
	var sum int64
	for _, cs := range insights.CategorySpending {
		sum += cs.Spent.Cents
	}
	assert.Equal(suite.T(), insights.TotalSpent.Cents, sum)

	// An empty month keeps the budget but reports zero spend.
	empty, err := suite.repo.MonthlyInsights(suite.ctx, user.ID, "2026-06")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(70000), empty.TotalBudget.Cents)
	assert.Equal(suite.T(), int64(0), empty.TotalSpent.Cents)
}

func (suite *RepositoryTestSuite) TestMonthlyHistoryZeroFills() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     user.ID,
		CategoryID: categories[0].ID,
		Amount:     core.Money{Cents: 7500},
		Date:       time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)

	history, err := suite.repo.MonthlyHistory(suite.ctx, user.ID, "2026-08", 12)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history, 12)

	assert.Equal(suite.T(), "2025-09", history[0].Month)
	assert.Equal(suite.T(), "2026-08", history[11].Month)
	for _, point := range history {
		if point.Month == "2026-05" {
			assert.Equal(suite.T(), int64(7500), point.Spent.Cents)
		} else {
			assert.Equal(suite.T(), int64(0), point.Spent.Cents)
		}
	}
}

func (suite *RepositoryTestSuite) TestRefreshMonthlyStats() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.repo.UpdateCategoryBudget(suite.ctx, user.ID, categories[0].ID, core.Money{Cents: 30000}))
	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     user.ID,
		CategoryID: categories[0].ID,
		Amount:     core.Money{Cents: 8200},
		Date:       time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.repo.RefreshMonthlyStats(suite.ctx, user.ID, "2026-08"))

	stat, err := suite.repo.GetMonthlyStat(suite.ctx, user.ID, "2026-08")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(8200), stat.Spent.Cents)
	assert.Equal(suite.T(), int64(30000), stat.Budget.Cents)

	// Refresh is an upsert, not an insert.
	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     user.ID,
		CategoryID: categories[0].ID,
		Amount:     core.Money{Cents: 1800},
		Date:       time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.repo.RefreshMonthlyStats(suite.ctx, user.ID, "2026-08"))

	stat, err = suite.repo.GetMonthlyStat(suite.ctx, user.ID, "2026-08")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(10000), stat.Spent.Cents)

	months, err := suite.repo.ActiveMonths(suite.ctx, user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2026-08"}, months)
}

func (suite *RepositoryTestSuite) TestDeleteUserRemovesEverything() {
	user := suite.createUser("alice@example.com")
	categories, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)

	_, err = suite.repo.CreateTransaction(suite.ctx, core.Transaction{
		UserID:     user.ID,
		CategoryID: categories[0].ID,
		Amount:     core.Money{Cents: 100},
		Date:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.repo.RefreshMonthlyStats(suite.ctx, user.ID, "2026-08"))

	require.NoError(suite.T(), suite.repo.DeleteUser(suite.ctx, user.ID))

	_, err = suite.repo.GetUserByID(suite.ctx, user.ID)
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	remaining, err := suite.repo.ListCategories(suite.ctx, user.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), remaining)

	_, err = suite.repo.GetMonthlyStat(suite.ctx, user.ID, "2026-08")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
