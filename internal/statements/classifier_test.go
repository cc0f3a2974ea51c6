package statements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCompanyName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"suffix stripped", "Acme Corp", "acme"},
		{"multiple suffixes", "Globex Holdings LLC", "globex"},
		{"punctuation collapsed", "Wayne, Enterprises (Inc.)", "wayne"},
		{"empty", "   ", ""},
		{"unchanged core", "Sterling Cooper", "sterlingcooper"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeCompanyName(tc.in))
		})
	}
}

func TestClassifierExactMatch(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{"Acme Corp", "Globex Holdings LLC"})

	cls := c.Classify(StatementRecord{CompanyName: "Acme Corp", Body: "PO Box 1 New York NY", Pages: 1})
	assert.Equal(t, "Acme Corp", cls.ExactMatch)
	assert.Equal(t, DestinationDNM, cls.Destination)
	assert.False(t, cls.AskQuestion)
	assert.False(t, cls.ManualRequired)
}

func TestClassifierNormalizedMatch(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{"Acme Corp"})

	// Different suffix, same normalized core.
	cls := c.Classify(StatementRecord{CompanyName: "ACME Incorporated", Body: "Dallas TX", Pages: 1})
	assert.Equal(t, "Acme Corp", cls.ExactMatch)
	assert.Equal(t, DestinationDNM, cls.Destination)
}

func TestClassifierFuzzyMatchAsksQuestion(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{"Northwind Traders Inc"})

	cls := c.Classify(StatementRecord{CompanyName: "Northwind Trader", Body: "Chicago IL", Pages: 1})
	require.Empty(t, cls.ExactMatch)
	require.Equal(t, "Northwind Traders Inc", cls.SimilarTo)
	assert.Greater(t, cls.Percentage, 60.0)
	assert.True(t, cls.ManualRequired)
	if cls.Percentage < 90.0 {
		assert.True(t, cls.AskQuestion)
	}
}

func TestClassifierEmailMentionRoutesToDNM(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	cls := c.Classify(StatementRecord{
		CompanyName: "Initech",
		Body:        "please send via email to billing@initech.example",
		Pages:       3,
	})
	assert.Equal(t, DestinationDNM, cls.Destination)
	assert.False(t, cls.AskQuestion)
}

func TestClassifierLocationRouting(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	cases := []struct {
		name string
		rec  StatementRecord
		want Destination
	}{
		{
			name: "foreign address",
			rec:  StatementRecord{CompanyName: "Maple Leaf Ltd", Body: "100 King St Toronto Ontario", Pages: 1},
			want: DestinationForeign,
		},
		{
			name: "national single page",
			rec:  StatementRecord{CompanyName: "Initech", Body: "500 Main St Austin TX 78701", Pages: 1},
			want: DestinationNatioSingle,
		},
		{
			name: "national multi page",
			rec:  StatementRecord{CompanyName: "Initech", Body: "500 Main St Austin TX 78701", Pages: 4},
			want: DestinationNatioMulti,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls := c.Classify(tc.rec)
			assert.Equal(t, tc.want, cls.Destination)
		})
	}
}

func TestSimilarityRatioBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, similarityRatio("acme", "acme"))
	assert.Equal(t, 0.0, similarityRatio("", "acme"))
	assert.InDelta(t, 0.0, similarityRatio("xyz", "qrs"), 0.0001)

	ratio := similarityRatio("northwindtraders", "northwindtrader")
	assert.Greater(t, ratio, 0.9)
	assert.Less(t, ratio, 1.0)
}
