package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/model"
)

func testRules() config.StreetRules {
	return config.StreetRules{
		Suffixes:        []string{"as", "es", "a", "u"},
		ExcludeSuffixes: []string{"ums", "ība", "šana"},
		StreetWords:     []string{"iela", "bulvāris", "gatve", "prospekts", "laukums"},
		InsertWord:      "iela",
	}
}

func testCity() config.CityConfig {
	return config.CityConfig{Name: "Rīga", Country: "Latvija"}
}

func TestBuildQueries_AppendsCityContext(t *testing.T) {
	rec := model.Record{ID: "r1", PrimaryAddress: "Brīvības iela 10"}
	got := BuildQueries(rec, testRules(), testCity())
	assert.Equal(t, []string{"Brīvības iela 10, Rīga, Latvija"}, got)
}

func TestBuildQueries_CityAlreadyPresent(t *testing.T) {
	rec := model.Record{ID: "r1", PrimaryAddress: "Brīvības iela 10, Rīga"}
	got := BuildQueries(rec, testRules(), testCity())
	assert.Equal(t, []string{"Brīvības iela 10, Rīga"}, got)
}

func TestBuildQueries_SplitsMultiSegmentAddresses(t *testing.T) {
	rec := model.Record{
		ID:         "r2",
		RawAddress: "Tērbatas iela 2 / Merķeļa iela 13",
	}
	got := BuildQueries(rec, testRules(), testCity())
	assert.Equal(t, []string{
		"Tērbatas iela 2, Rīga, Latvija",
		"Merķeļa iela 13, Rīga, Latvija",
	}, got)
}

func TestBuildQueries_PrefersNormalizedParts(t *testing.T) {
	rec := model.Record{
		ID:             "r3",
		PrimaryAddress: "Brīvības iela 10",
		AddressParts: []model.AddressPart{
			{Raw: "brivibas 10", Normalized: "Brīvības iela 10"},
		},
	}
	got := BuildQueries(rec, testRules(), testCity())
	// The normalized part deduplicates against the primary; the raw form is
	// never consulted when a normalized one exists.
	assert.Equal(t, []string{"Brīvības iela 10, Rīga, Latvija"}, got)
}

func TestBuildQueries_DeduplicatesCaseInsensitively(t *testing.T) {
	rec := model.Record{
		ID:             "r4",
		PrimaryAddress: "Brīvības iela 10",
		RawAddress:     "BRĪVĪBAS IELA 10",
	}
	got := BuildQueries(rec, testRules(), testCity())
	assert.Len(t, got, 1)
	assert.Equal(t, "Brīvības iela 10, Rīga, Latvija", got[0])
}

func TestBuildQueries_AddsRewrittenVariantAfterOriginal(t *testing.T) {
	rec := model.Record{ID: "r5", PrimaryAddress: "Brīvības 10"}
	got := BuildQueries(rec, testRules(), testCity())
	assert.Equal(t, []string{
		"Brīvības 10, Rīga, Latvija",
		"Brīvības iela 10, Rīga, Latvija",
	}, got)
}

func TestBuildQueries_EmptyRecord(t *testing.T) {
	got := BuildQueries(model.Record{ID: "r6"}, testRules(), testCity())
	assert.Empty(t, got)
}

func TestRewriteColloquialStreet(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"lone genitive name", "Brīvības 10", "Brīvības iela 10", true},
		{"keeps trailing tokens", "Brīvības 10 k-2", "Brīvības iela 10 k-2", true},
		{"street word present", "Brīvības iela 10", "", false},
		{"boulevard present", "Raiņa bulvāris 7", "", false},
		{"two name tokens", "Kronvalda parks 1", "", false},
		{"excluded suffix", "Brīvība 10", "", false},
		{"no house number", "Brīvības", "", false},
		{"house number first", "10 Brīvības", "", false},
		{"suffix not in table", "Citadele 10", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RewriteColloquialStreet(tt.in, rules)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriteColloquialStreet_DisabledWithoutRules(t *testing.T) {
	_, ok := RewriteColloquialStreet("Brīvības 10", config.StreetRules{})
	assert.False(t, ok)
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("brīvības iela 10", "iela"))
	assert.False(t, containsWord("ielas skats 10", "iela"))
	assert.False(t, containsWord("brīvības 10", "iela"))
	assert.True(t, containsWord("raiņa bulvāris 7", "bulvāris"))
}
