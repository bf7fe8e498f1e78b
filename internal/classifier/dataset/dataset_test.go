package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`[
		{"summary": "Payment of $1200 was made.", "doc_type": "INVOICE", "doc_code": "INV001"},
		{"summary": "Account ACC-339 shows a balance.", "doc_type": "BANK_STATEMENT", "doc_code": "BS001"}
	]`)

	samples, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "INVOICE", samples[0].DocType)
	assert.Equal(t, "BS001", samples[1].DocCode)
}

func TestParseRejectsPartialRecords(t *testing.T) {
	_, err := Parse([]byte(`[{"summary": "", "doc_type": "A", "doc_code": "1"}]`))
	assert.ErrorContains(t, err, "empty summary")

	_, err = Parse([]byte(`[{"summary": "text", "doc_type": "", "doc_code": "1"}]`))
	assert.ErrorContains(t, err, "missing label")

	_, err = Parse([]byte(`[{"summary": "text", "doc_type": "A", "doc_code": ""}]`))
	assert.ErrorContains(t, err, "missing label")
}

func TestParseRejectsBadJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"summary": "s", "doc_type": "A", "doc_code": "1"}]`), 0o644))

	samples, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
