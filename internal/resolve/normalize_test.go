package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Lowercase(t *testing.T) {
	assert.Equal(t, "acme advisors", NormalizeName("Acme Advisors"))
}

func TestNormalizeName_StripInc(t *testing.T) {
	assert.Equal(t, "acme", NormalizeName("Acme Inc"))
	assert.Equal(t, "acme", NormalizeName("Acme Inc."))
	assert.Equal(t, "acme", NormalizeName("Acme, Inc."))
	assert.Equal(t, "acme", NormalizeName("Acme Incorporated"))
}

func TestNormalizeName_StripCorp(t *testing.T) {
	assert.Equal(t, "acme", NormalizeName("Acme Corp."))
	assert.Equal(t, "acme", NormalizeName("ACME CORP"))
	assert.Equal(t, "acme", NormalizeName("ACME Corporation"))
	assert.Equal(t, NormalizeName("Acme Corp."), NormalizeName("ACME CORP"))
}

func TestNormalizeName_StripOtherSuffixes(t *testing.T) {
	assert.Equal(t, "data systems", NormalizeName("Data Systems Ltd"))
	assert.Equal(t, "data systems", NormalizeName("Data Systems Limited"))
	assert.Equal(t, "cloud services", NormalizeName("Cloud Services LLC"))
	assert.Equal(t, "siemens", NormalizeName("Siemens GmbH"))
	assert.Equal(t, "unilever", NormalizeName("Unilever PLC"))
	assert.Equal(t, "philips", NormalizeName("Philips N.V"))
	assert.Equal(t, "acme", NormalizeName("Acme-LLC"))
}

func TestNormalizeName_StackedSuffixes(t *testing.T) {
	assert.Equal(t, "acme", NormalizeName("Acme Pty Ltd"))
	assert.Equal(t, "acme", NormalizeName("Acme Pty. Ltd."))
}

func TestNormalizeName_OnlySuffix(t *testing.T) {
	// A bare suffix has no separator in front of it and is kept.
	assert.Equal(t, "llc", NormalizeName("LLC"))
}

func TestNormalizeName_SuffixInsideWord(t *testing.T) {
	assert.Equal(t, "visa", NormalizeName("Visa"))
	assert.Equal(t, "incase designs", NormalizeName("Incase Designs"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "smith jones", NormalizeName("Smith & Jones"))
	assert.Equal(t, "joes advisors", NormalizeName("Joe's Advisors"))
	assert.Equal(t, "wellsfargo", NormalizeName("Wells-Fargo"))
}

func TestNormalizeName_CollapseSpaces(t *testing.T) {
	assert.Equal(t, "acme advisors", NormalizeName("  Acme \t  Advisors  "))
}

func TestNormalizeName_FoldsAccents(t *testing.T) {
	assert.Equal(t, "societe generale", NormalizeName("Société Générale S.A."))
	assert.Equal(t, NormalizeName("Nestle"), NormalizeName("Nestlé"))
}

func TestNormalizeName_SuffixExposedByPunctuation(t *testing.T) {
	// Removing the parentheses exposes a trailing suffix, which is then stripped.
	assert.Equal(t, "acme", NormalizeName("Acme (Corp)"))
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Acme Corp.",
		"ACME CORPORATION",
		"Acme (Corp)",
		"Acme Pty Ltd.",
		"Global Telecom East Africa",
		"Société Générale S.A.",
		"-inc",
		"LLC",
		"  Smith & Jones, Inc.  ",
		"Ünïcödé Ltd",
		"A.B.C. Holdings, L.L.C.",
		"İstanbul Ticaret A.G.",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
}
