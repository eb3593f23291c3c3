package http

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penny/internal/auth"
	"penny/internal/config"
	"penny/internal/log"
	"penny/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client, *storage.SQLiteRepository) {
	t.Helper()

	logger := log.New(log.DefaultConfig())
	repo, err := storage.NewSQLiteRepository(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		Port:      "8080",
		JWTSecret: "test-secret-at-least-16-chars",
	}

	srv, err := NewServer(cfg, repo, auth.NewTokenIssuer(cfg.JWTSecret), nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop(); srv.insightsCache.Stop() })

	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	return ts, client, repo
}

func signup(t *testing.T, ts *httptest.Server, client *http.Client, email, password string) {
	t.Helper()
	resp, err := client.PostForm(ts.URL+"/signup", url.Values{
		"email":    {email},
		"name":     {"Test User"},
		"password": {password},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "signup should land on the dashboard")
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	ts, _, _ := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for _, path := range []string{"/", "/budget", "/transactions", "/settings", "/export/summary.csv"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "path %s", path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), "path %s", path)
	}
}

func TestSignupCreatesSessionAndDefaults(t *testing.T) {
	ts, client, repo := newTestServer(t)

	signup(t, ts, client, "alice@example.com", "hunter22")

	// The session cookie grants access to the dashboard.
	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Dashboard")

	user, err := repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	categories, err := repo.ListCategories(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, categories, 9)
}

func TestSignupNameIsOptional(t *testing.T) {
	ts, client, repo := newTestServer(t)

	resp, err := client.PostForm(ts.URL+"/signup", url.Values{
		"email":    {"noname@example.com"},
		"password": {"hunter22"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user, err := repo.GetUserByEmail(context.Background(), "noname@example.com")
	require.NoError(t, err)
	assert.Empty(t, user.Name)
}

func TestSignupRejectsWeakPassword(t *testing.T) {
	ts, client, _ := newTestServer(t)

	resp, err := client.PostForm(ts.URL+"/signup", url.Values{
		"email":    {"alice@example.com"},
		"password": {"short"},
	})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "at least 6 characters")
}

func TestLoginErrorIsUniform(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	// Fresh client with no session.
	anon := &http.Client{}

	unknownEmail, err := anon.PostForm(ts.URL+"/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"whatever1"},
	})
	require.NoError(t, err)
	unknownBody, _ := io.ReadAll(unknownEmail.Body)
	unknownEmail.Body.Close()

	wrongPassword, err := anon.PostForm(ts.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrongwrong"},
	})
	require.NoError(t, err)
	wrongBody, _ := io.ReadAll(wrongPassword.Body)
	wrongPassword.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Contains(t, string(unknownBody), loginFailedMsg)
	assert.Contains(t, string(wrongBody), loginFailedMsg)
}

func TestLogoutClearsSession(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	resp, err := client.PostForm(ts.URL+"/logout", nil)
	require.NoError(t, err)
	resp.Body.Close()

	noRedirect := *client
	noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	after, err := noRedirect.Get(ts.URL + "/")
	require.NoError(t, err)
	after.Body.Close()
	assert.Equal(t, http.StatusSeeOther, after.StatusCode)
}

func TestBudgetAndSpendFlow(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	// Create a Travel category with a 500 budget.
	resp, err := client.PostForm(ts.URL+"/categories", url.Values{
		"name":   {"Travel"},
		"budget": {"500"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Find its ID on the budget page form action.
	page, err := client.Get(ts.URL + "/budget")
	require.NoError(t, err)
	budgetHTML, _ := io.ReadAll(page.Body)
	page.Body.Close()
	require.Contains(t, string(budgetHTML), "Travel")

	catID := categoryIDFromOptions(t, ts, client, "Travel")

	// Record a 40 transaction against it.
	resp, err = client.PostForm(ts.URL+"/transactions", url.Values{
		"category_id": {catID},
		"amount":      {"40"},
		"date":        {"2026-08-15"},
		"notes":       {"train tickets"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The insights partial reports 40 spent of 500.
	insights, err := client.Get(ts.URL + "/ui/insights?month=2026-08")
	require.NoError(t, err)
	insightsHTML, _ := io.ReadAll(insights.Body)
	insights.Body.Close()
	require.Equal(t, http.StatusOK, insights.StatusCode)
	assert.Contains(t, string(insightsHTML), "$40.00")
	assert.Contains(t, string(insightsHTML), "$500.00")
	assert.Contains(t, string(insightsHTML), "$460.00 remaining")

	// And the CSV export agrees.
	csv, err := client.Get(ts.URL + "/export/summary.csv?month=2026-08")
	require.NoError(t, err)
	csvBody, _ := io.ReadAll(csv.Body)
	csv.Body.Close()
	assert.Contains(t, string(csvBody), "Travel,500.00,40.00,460.00,USD")
}

func TestOverBudgetShowsPositiveOverage(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "omar@example.com", "hunter22")

	catID := categoryIDFromOptions(t, ts, client, "Transport")

	resp, err := client.PostForm(ts.URL+"/categories/"+catID+"/budget", url.Values{
		"budget": {"100"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.PostForm(ts.URL+"/transactions", url.Values{
		"category_id": {catID},
		"amount":      {"140"},
		"date":        {"2026-08-10"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	insights, err := client.Get(ts.URL + "/ui/insights?month=2026-08")
	require.NoError(t, err)
	insightsHTML, _ := io.ReadAll(insights.Body)
	insights.Body.Close()
	require.Equal(t, http.StatusOK, insights.StatusCode)
	assert.Contains(t, string(insightsHTML), "Over budget by $40.00")
	assert.NotContains(t, string(insightsHTML), "-$40.00")
}

func TestZeroBudgetAccepted(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "zoe@example.com", "hunter22")

	catID := categoryIDFromOptions(t, ts, client, "Entertainment")

	// Saving the pre-filled zero budget of an untouched default category
	// succeeds rather than rejecting the amount.
	resp, err := client.PostForm(ts.URL+"/categories/"+catID+"/budget", url.Values{
		"budget": {"0.00"},
	})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "Invalid budget amount")

	// A set budget can be cleared back to zero.
	resp, err = client.PostForm(ts.URL+"/categories/"+catID+"/budget", url.Values{
		"budget": {"250"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	csv, err := client.Get(ts.URL + "/export/summary.csv?month=2026-08")
	require.NoError(t, err)
	csvBody, _ := io.ReadAll(csv.Body)
	csv.Body.Close()
	assert.Contains(t, string(csvBody), "Entertainment,250.00")

	resp, err = client.PostForm(ts.URL+"/categories/"+catID+"/budget", url.Values{
		"budget": {"0.00"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	csv, err = client.Get(ts.URL + "/export/summary.csv?month=2026-08")
	require.NoError(t, err)
	csvBody, _ = io.ReadAll(csv.Body)
	csv.Body.Close()
	assert.Contains(t, string(csvBody), "Entertainment,0.00")
}

func TestDuplicateCategoryConflict(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	resp, err := client.PostForm(ts.URL+"/categories", url.Values{"name": {"Travel"}})
	require.NoError(t, err)
	resp.Body.Close()

	dup, err := client.PostForm(ts.URL+"/categories", url.Values{"name": {"Travel"}})
	require.NoError(t, err)
	body, _ := io.ReadAll(dup.Body)
	dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
	assert.Contains(t, string(body), "already exists")
}

func TestCurrencyChangeRescalesDisplay(t *testing.T) {
	ts, client, _ := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	catID := categoryIDFromOptions(t, ts, client, "Food & Groceries")

	resp, err := client.PostForm(ts.URL+"/transactions", url.Values{
		"category_id": {catID},
		"amount":      {"100"},
		"date":        {"2026-08-10"},
	})
	require.NoError(t, err)
	resp.Body.Close()

	// Switch display currency to EUR.
	resp, err = client.PostForm(ts.URL+"/settings", url.Values{"currency": {"EUR"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	insights, err := client.Get(ts.URL + "/ui/insights?month=2026-08")
	require.NoError(t, err)
	insightsHTML, _ := io.ReadAll(insights.Body)
	insights.Body.Close()
	assert.Contains(t, string(insightsHTML), "€92.00")
}

func TestDeleteAccountRequiresConfirmation(t *testing.T) {
	ts, client, repo := newTestServer(t)
	signup(t, ts, client, "alice@example.com", "hunter22")

	// Wrong confirmation leaves the account alone.
	resp, err := client.PostForm(ts.URL+"/settings/delete", url.Values{
		"confirm_email": {"wrong@example.com"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, err = repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	// Correct confirmation removes it and ends the session.
	resp, err = client.PostForm(ts.URL+"/settings/delete", url.Values{
		"confirm_email": {"alice@example.com"},
	})
	require.NoError(t, err)
	resp.Body.Close()

	_, err = repo.GetUserByEmail(context.Background(), "alice@example.com")
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	ts, client, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "path %s", path)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	ts, client, _ := newTestServer(t)

	resp, err := client.Get(ts.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
}

// categoryIDFromOptions scrapes the transaction form's category select for
// the option whose label matches name. Labels are entity-escaped in the
// rendered page, so each line is unescaped before matching.
func categoryIDFromOptions(t *testing.T, ts *httptest.Server, client *http.Client, name string) string {
	t.Helper()

	resp, err := client.Get(ts.URL + "/transactions/new")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, line := range strings.Split(string(body), "\n") {
		if strings.Contains(html.UnescapeString(line), ">"+name+"<") {
			start := strings.Index(line, `value="`)
			require.GreaterOrEqual(t, start, 0)
			rest := line[start+len(`value="`):]
			end := strings.Index(rest, `"`)
			require.Greater(t, end, 0)
			return rest[:end]
		}
	}
	t.Fatalf("category %q not found in form", name)
	return ""
}
