package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurylens/treasury-cli/internal/config"
	"github.com/treasurylens/treasury-cli/internal/fetcher"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/resilience"
	"github.com/treasurylens/treasury-cli/internal/resolve"
)

func newTestClient(baseURL string) *Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: "treasury-cli-test/1.0"})
	return NewClient(f, config.EdgarConfig{BaseURL: baseURL})
}

func TestCompanyFacts_FetchesPaddedCIK(t *testing.T) {
	var gotPath string
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		hits++
		w.Header().Set("ETag", `"f1"`)
		if r.Header.Get("If-None-Match") == `"f1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(sampleFacts))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	facts, err := c.CompanyFacts(context.Background(), "1050446")
	require.NoError(t, err)
	assert.Equal(t, "/api/xbrl/companyfacts/CIK0001050446.json", gotPath)
	assert.Equal(t, "STRATEGY INC", facts.EntityName)

	// The second call revalidates via ETag and reuses the parsed payload.
	again, err := c.CompanyFacts(context.Background(), "1050446")
	require.NoError(t, err)
	assert.Same(t, facts, again)
	assert.Equal(t, 2, hits)
}

func TestCompanyFacts_UnknownCIK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CompanyFacts(context.Background(), "9999999")
	assert.True(t, resilience.IsNotFound(err))
}

func TestFilingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Item 8.01 Other Events."))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).FilingText(context.Background(), srv.URL+"/doc.htm")
	require.NoError(t, err)
	assert.Equal(t, "Item 8.01 Other Events.", text)
}

func TestFactResolver_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleFacts))
	}))
	defer srv.Close()

	r := NewFactResolver(newTestClient(srv.URL), resolve.DefaultCatalog())
	company := model.Company{Ticker: "MSTR", CIK: "1050446", Asset: "BTC"}

	claim, err := r.Resolve(context.Background(), company, model.FieldSharesOutstanding)
	require.NoError(t, err)
	assert.Equal(t, 281000000.0, claim.Value)
	assert.Equal(t, model.MethodStructured, claim.Method)
	assert.Equal(t, 1.0, claim.Confidence)
	assert.NotEmpty(t, claim.SourceURL)

	_, err = r.Resolve(context.Background(), company, model.FieldDebt)
	assert.True(t, resilience.IsNotFound(err))

	_, err = r.Resolve(context.Background(), company, "unknown_field")
	assert.True(t, resilience.IsNotFound(err))
}

func TestFactResolver_NoCIK(t *testing.T) {
	r := NewFactResolver(newTestClient("http://unused.invalid"), resolve.DefaultCatalog())

	_, err := r.Observations(context.Background(), model.Company{Ticker: "PRIV"})
	assert.True(t, resilience.IsNotFound(err))
}
