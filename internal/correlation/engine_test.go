package correlation

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"intel-correlation-service/internal/models"
)

func testEngine() *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(logger)
}

func TestMatchSoftwareTags(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, Title: "Remote code execution in HTTP server", ProductTags: []string{"Apache HTTPD", "nginx"}},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "web-01", SoftwareTags: []string{"apache"}},
		{ID: 11, Hostname: "db-01", SoftwareTags: []string{"postgresql"}},
	}

	got := e.Match(items, assets)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].Asset.ID)
	assert.Equal(t, KindTag, got[0].Kind)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, ProductTags: []string{"OPENSSL 3.0"}},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "vpn-01", SoftwareTags: []string{"OpenSSL"}},
	}

	got := e.Match(items, assets)
	require.Len(t, got, 1)
	assert.Equal(t, KindTag, got[0].Kind)
}

func TestMatchPIRKeywordInTitle(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, Title: "New ransomware campaign targets healthcare"},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "file-01", PIRKeywords: []string{"Ransomware"}},
	}

	got := e.Match(items, assets)
	require.Len(t, got, 1)
	assert.Equal(t, KindPIR, got[0].Kind)
}

func TestMatchPIRWinsOverTag(t *testing.T) {
	e := testEngine()
	// Asset matches through both paths; exactly one candidate comes out and
	// it carries the PIR kind.
	items := []models.RawIntelItem{
		{ID: 1, Title: "ransomware exploits apache flaw", ProductTags: []string{"apache"}},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "web-01", SoftwareTags: []string{"apache"}, PIRKeywords: []string{"ransomware"}},
	}

	got := e.Match(items, assets)
	require.Len(t, got, 1)
	assert.Equal(t, KindPIR, got[0].Kind)
}

func TestMatchMultipleAssets(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, ProductTags: []string{"openssh"}},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "bastion-01", SoftwareTags: []string{"openssh"}},
		{ID: 11, Hostname: "bastion-02", SoftwareTags: []string{"openssh"}},
		{ID: 12, Hostname: "win-01", SoftwareTags: []string{"iis"}},
	}

	got := e.Match(items, assets)
	assert.Len(t, got, 2)
}

func TestMatchNoOverlap(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, Title: "Buffer overflow in legacy firmware", ProductTags: []string{"fortios"}},
	}
	assets := []models.Asset{
		{ID: 10, Hostname: "web-01", SoftwareTags: []string{"apache"}, PIRKeywords: []string{"apt29"}},
	}

	assert.Empty(t, e.Match(items, assets))
}

func TestMatchIsDeterministic(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, ProductTags: []string{"apache"}},
		{ID: 2, Title: "zero-day in vpn appliances"},
	}
	assets := []models.Asset{
		{ID: 10, SoftwareTags: []string{"apache"}},
		{ID: 11, PIRKeywords: []string{"zero-day"}},
	}

	first := e.Match(items, assets)
	second := e.Match(items, assets)
	assert.Equal(t, first, second)
}

func TestMatchIgnoresEmptyTags(t *testing.T) {
	e := testEngine()
	items := []models.RawIntelItem{
		{ID: 1, ProductTags: []string{"", "  "}},
	}
	assets := []models.Asset{
		{ID: 10, SoftwareTags: []string{""}, PIRKeywords: []string{" "}},
	}

	assert.Empty(t, e.Match(items, assets))
}
