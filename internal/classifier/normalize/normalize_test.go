package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/internal/classifier/normalize"
	"github.com/kart-io/triplet-classifier/internal/model"
)

func TestNormalizeMasksAmountsAndDates(t *testing.T) {
	n := normalize.New()

	got, err := n.Normalize(model.Triplet{
		Subject:   "Payment",
		Predicate: "has_value",
		Object:    "$1,200.00 on 2025-09-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "payment", got.Subject)
	assert.Equal(t, "has_value", got.Predicate)
	assert.Equal(t, "<AMOUNT> on <DATE>", got.Object)
}

func TestNormalizeMasksReferenceAndAccountNumbers(t *testing.T) {
	n := normalize.New()

	got, err := n.Normalize(model.Triplet{
		Subject:   "document",
		Predicate: "identifier",
		Object:    "#INV-100",
	})
	require.NoError(t, err)
	assert.Equal(t, "<REF>", got.Object)

	got, err = n.Normalize(model.Triplet{
		Subject:   "withdrawal",
		Predicate: "from",
		Object:    "account 12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "account <ACCOUNT>", got.Object)
}

func TestNormalizeMasksNamesAndOrganizations(t *testing.T) {
	n := normalize.New()

	got, err := n.Normalize(model.Triplet{
		Subject:   "organization",
		Predicate: "name",
		Object:    "ACME Corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "<ORG>", got.Object)

	got, err = n.Normalize(model.Triplet{
		Subject:   "request",
		Predicate: "submitted_by",
		Object:    "Dr. Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "<PERSON>", got.Object)
}

func TestNormalizePreservesCommonVocabulary(t *testing.T) {
	n := normalize.New()

	got, err := n.Normalize(model.Triplet{
		Subject:   "  The   Bank  Statement ",
		Predicate: "SHOWS",
		Object:    "a withdrawal",
	})
	require.NoError(t, err)

	assert.Equal(t, "the bank statement", got.Subject)
	assert.Equal(t, "shows", got.Predicate)
	assert.Equal(t, "a withdrawal", got.Object)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := normalize.New()

	inputs := []model.Triplet{
		{Subject: "Payment", Predicate: "has_value", Object: "$1200"},
		{Subject: "date", Predicate: "on", Object: "2025-09-01"},
		{Subject: "document", Predicate: "identifier", Object: "INV-100"},
		{Subject: "withdrawal", Predicate: "from", Object: "account 12345678"},
		{Subject: "organization", Predicate: "name", Object: "ACME Corp"},
		{Subject: "order", Predicate: "contains", Object: "100 units of product"},
	}

	for _, in := range inputs {
		once, err := n.Normalize(in)
		require.NoError(t, err)
		twice, err := n.Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalize(normalize(x)) must equal normalize(x) for %+v", in)
	}
}

func TestNormalizeRejectsMalformedInput(t *testing.T) {
	n := normalize.New()

	_, err := n.Normalize(model.Triplet{Subject: "", Predicate: "p", Object: "o"})
	assert.ErrorIs(t, err, normalize.ErrMalformedTriplet)

	_, err = n.Normalize(model.Triplet{Subject: "s", Predicate: "p", Object: "   "})
	assert.ErrorIs(t, err, normalize.ErrMalformedTriplet)
}

func TestNormalizeSetPreservesOrderAndInput(t *testing.T) {
	n := normalize.New()

	in := model.TripletSet{
		{Subject: "Amount", Predicate: "has_value", Object: "$500"},
		{Subject: "Date", Predicate: "on", Object: "2025-08-30"},
	}

	out, err := n.NormalizeSet(in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "<AMOUNT>", out[0].Object)
	assert.Equal(t, "<DATE>", out[1].Object)

	// The input set itself is not mutated.
	assert.Equal(t, "$500", in[0].Object)
}

func TestNormalizeSetEmpty(t *testing.T) {
	n := normalize.New()
	out, err := n.NormalizeSet(nil)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}
