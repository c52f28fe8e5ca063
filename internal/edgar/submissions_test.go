package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSubmissions = `{
	"cik": "1050446",
	"name": "STRATEGY INC",
	"filings": {
		"recent": {
			"accessionNumber": ["0001050446-25-000150", "0001050446-25-000123", "0001050446-25-000100"],
			"form": ["8-K", "10-Q", "4"],
			"filingDate": ["2025-10-14", "2025-08-05", "2025-07-01"],
			"primaryDocument": ["pr8k.htm", "mstr-10q.htm", "form4.xml"]
		}
	}
}`

func TestSubmissions_Fetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(sampleSubmissions))
	}))
	defer srv.Close()

	sub, err := newTestClient(srv.URL).Submissions(context.Background(), "1050446")
	require.NoError(t, err)
	assert.Equal(t, "/submissions/CIK0001050446.json", gotPath)
	assert.Equal(t, "STRATEGY INC", sub.Name)
	assert.Len(t, sub.Recent.AccessionNumber, 3)
}

func TestRecentFilings_FilterAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleSubmissions))
	}))
	defer srv.Close()

	sub, err := newTestClient(srv.URL).Submissions(context.Background(), "1050446")
	require.NoError(t, err)

	eightKs := sub.RecentFilings([]string{"8-K"}, 10)
	require.Len(t, eightKs, 1)
	assert.Equal(t, "8-K", eightKs[0].Form)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/1050446/000105044625000150/pr8k.htm", eightKs[0].DocumentURL)

	all := sub.RecentFilings(nil, 2)
	require.Len(t, all, 2)
	assert.Equal(t, "8-K", all[0].Form)
	assert.Equal(t, "10-Q", all[1].Form)
}
