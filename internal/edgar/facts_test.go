package edgar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFacts = `{
	"cik": 1050446,
	"entityName": "STRATEGY INC",
	"facts": {
		"dei": {
			"EntityCommonStockSharesOutstanding": {
				"label": "Entity Common Stock, Shares Outstanding",
				"units": {
					"shares": [
						{"end": "2025-06-30", "val": 281000000, "accn": "0001050446-25-000123", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"},
						{"end": "2025-03-31", "val": 263000000, "accn": "0001050446-25-000080", "fy": 2025, "fp": "Q1", "form": "10-Q", "filed": "2025-05-05"}
					]
				}
			}
		},
		"us-gaap": {
			"CryptoAssetNumberOfUnits": {
				"label": "Crypto Asset, Number of Units",
				"units": {
					"pure": [
						{"end": "2025-06-30", "val": 601550, "accn": "0001050446-25-000123", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"},
						{"end": "", "val": 1, "accn": "x", "form": "10-Q", "filed": "2025-08-05"},
						{"end": "2025-06-30", "val": "not-a-number", "accn": "x", "form": "10-Q", "filed": "2025-08-05"}
					]
				}
			}
		}
	}
}`

func TestParseCompanyFacts(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(sampleFacts))
	require.NoError(t, err)
	assert.Equal(t, 1050446, facts.CIK)
	assert.Equal(t, "STRATEGY INC", facts.EntityName)
	assert.Len(t, facts.Facts, 2)
}

func TestParseCompanyFacts_Malformed(t *testing.T) {
	_, err := ParseCompanyFacts([]byte("<html>not json</html>"))
	assert.Error(t, err)
}

func TestObservations_Flattening(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(sampleFacts))
	require.NoError(t, err)

	obs := facts.Observations()
	require.Contains(t, obs, "dei:EntityCommonStockSharesOutstanding")
	require.Contains(t, obs, "us-gaap:CryptoAssetNumberOfUnits")

	shares := obs["dei:EntityCommonStockSharesOutstanding"]
	require.Len(t, shares, 2)
	assert.Equal(t, 281000000.0, shares[0].Value)
	assert.Equal(t, "shares", shares[0].Unit)
	assert.Equal(t, "10-Q", shares[0].Form)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), shares[0].PeriodEnd)
	assert.Equal(t, time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC), shares[0].FiledDate)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/1050446/000105044625000123", shares[0].SourceID)

	// The string-valued and end-less data points are dropped at this boundary.
	holdings := obs["us-gaap:CryptoAssetNumberOfUnits"]
	require.Len(t, holdings, 1)
	assert.Equal(t, 601550.0, holdings[0].Value)
}

func TestObservations_Empty(t *testing.T) {
	var facts *CompanyFacts
	assert.Nil(t, facts.Observations())
	assert.Nil(t, (&CompanyFacts{}).Observations())
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0001050446", PadCIK("1050446"))
	assert.Equal(t, "0001050446", PadCIK("CIK1050446"))
	assert.Equal(t, "0001050446", PadCIK(" 1050446 "))
	assert.Equal(t, "1234567890", PadCIK("1234567890"))
}
