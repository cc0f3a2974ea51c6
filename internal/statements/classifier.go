package statements

import (
	"regexp"
	"strings"
)

// usStates is the token set used for National vs Foreign detection.
var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {},
	"DE": {}, "FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {},
	"IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {}, "MA": {},
	"MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {},
	"NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {},
	"OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {}, "TN": {},
	"TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {},
	"WY": {}, "DC": {},
}

var businessSuffixes = []string{
	"inc", "incorporated", "incorporation", "corp", "corporation",
	"llc", `l\.l\.c\.?`, "limited liability company",
	"ltd", "limited", "ltda",
	"llp", `l\.l\.p\.?`, "limited liability partnership",
	"lp", `l\.p\.?`, "limited partnership",
	"gp", "general partnership",
	"pc", `p\.c\.?`, "professional corporation",
	"pa", `p\.a\.?`, "professional association",
	"pllc", `p\.l\.l\.c\.?`, "professional limited liability company",
	"plc", `p\.l\.c\.?`, "public limited company",
	"professional company",
	"co", "company", "companies",
	"enterprise", "enterprises",
	"group", "groups",
	"holding", "holdings",
	"international", "intl",
	"global", "worldwide",
	"solutions", "services", "systems",
	"technologies", "tech", "industries",
	"sc", `s\.c\.?`, "service corporation",
	"bc", `b\.c\.?`, "benefit corporation",
	"pbc", "public benefit corporation",
	"nonprofit", "non-profit",
	"foundation", "trust",
	"association", "assn",
	"society", "institute", "academy",
	"center", "centre",
	"organization", "org",
	"pty", "proprietary",
	"pvt", "private",
	"pub", "public",
	"joint venture", "jv",
	"partnership", "syndicate", "consortium",
	"cooperative", "coop", "co-op",
	"bank", "banking",
	"credit union", "mutual",
	"insurance", "ins",
	"realty", "real estate",
	"investment", "investments",
	"capital", "financial", "finance",
	"the", "and", "&", "of",
	"dba", "d/b/a", "doing business as",
	"aka", "a/k/a", "also known as",
	"fka", "f/k/a", "formerly known as",
	"nka", "n/k/a", "now known as",
}

var (
	suffixPattern = compileSuffixPattern()
	cleanPattern  = regexp.MustCompile(`[\s,.()\-_&]+`)
)

func compileSuffixPattern() *regexp.Regexp {
	escaped := make([]string, 0, len(businessSuffixes))
	for _, s := range businessSuffixes {
		if strings.Contains(s, `\`) {
			escaped = append(escaped, s)
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(s))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`)
}

// NormalizeCompanyName lowercases a company name and strips business
// suffixes and punctuation so equivalent names compare equal.
func NormalizeCompanyName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ""
	}
	normalized = suffixPattern.ReplaceAllString(normalized, "")
	normalized = cleanPattern.ReplaceAllString(normalized, "")
	return strings.TrimSpace(normalized)
}

// Classifier routes statements against a do-not-mail list. Exact and
// normalized lookups are constant time; a fuzzy pass covers near misses.
type Classifier struct {
	companies     map[string]struct{}
	normalizedMap map[string]string
	normalizedKey []string
}

// NewClassifier pre-processes the DNM company list for fast lookups.
func NewClassifier(dnmCompanies []string) *Classifier {
	c := &Classifier{
		companies:     make(map[string]struct{}, len(dnmCompanies)),
		normalizedMap: make(map[string]string, len(dnmCompanies)),
	}
	for _, company := range dnmCompanies {
		company = strings.TrimSpace(company)
		if company == "" {
			continue
		}
		c.companies[company] = struct{}{}
		if normalized := NormalizeCompanyName(company); normalized != "" {
			if _, seen := c.normalizedMap[normalized]; !seen {
				c.normalizedMap[normalized] = company
				c.normalizedKey = append(c.normalizedKey, normalized)
			}
		}
	}
	return c
}

const (
	fuzzyCutoff        = 0.6
	highConfidencePct  = 90.0
	similarityPctScale = 100.0
)

// Classify runs the full routing decision for one statement record.
func (c *Classifier) Classify(rec StatementRecord) Classification {
	exact, similar, pct := c.matchCompany(rec.CompanyName)
	location := detectLocation(rec.Body)

	cls := Classification{
		ExactMatch:  exact,
		SimilarTo:   similar,
		Percentage:  pct,
		Location:    location,
		Destination: determineDestination(exact, rec.Body, location, rec.Pages, pct),
	}

	hasEmail := strings.Contains(strings.ToLower(rec.Body), "email")
	highConfidence := similar != "" && pct >= highConfidencePct
	if !hasEmail && !highConfidence && exact == "" {
		cls.ManualRequired = similar != ""
		cls.AskQuestion = cls.ManualRequired && pct < highConfidencePct
	}
	return cls
}

// matchCompany returns either an exact DNM hit or the closest fuzzy match
// with its similarity percentage.
func (c *Classifier) matchCompany(name string) (exact, similar string, pct float64) {
	if _, ok := c.companies[name]; ok {
		return name, "", 0
	}
	normalized := NormalizeCompanyName(name)
	if normalized == "" {
		return "", "", 0
	}
	if original, ok := c.normalizedMap[normalized]; ok {
		return original, "", 0
	}

	bestRatio := 0.0
	bestKey := ""
	for _, key := range c.normalizedKey {
		if ratio := similarityRatio(normalized, key); ratio > bestRatio {
			bestRatio = ratio
			bestKey = key
		}
	}
	if bestRatio >= fuzzyCutoff {
		rounded := float64(int(bestRatio*similarityPctScale*10+0.5)) / 10
		return "", c.normalizedMap[bestKey], rounded
	}
	return "", "", 0
}

// similarityRatio scores two strings as 2*LCS/(len(a)+len(b)), matching the
// behavior of common sequence-matcher ratios: 1.0 for identical strings,
// 0.0 for fully disjoint ones.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[lb]
	return 2.0 * float64(lcs) / float64(la+lb)
}

// detectLocation scans for US state tokens to label a statement National.
func detectLocation(text string) string {
	for _, f := range strings.Fields(strings.ToUpper(text)) {
		if _, ok := usStates[f]; ok {
			return "National"
		}
	}
	return "Foreign"
}

// DestinationFor routes a statement by location and page count alone. It is
// the fallback used when a fuzzy DNM match is rejected during review.
func DestinationFor(location string, pages int) Destination {
	switch {
	case location == "Foreign":
		return DestinationForeign
	case pages <= 1:
		return DestinationNatioSingle
	default:
		return DestinationNatioMulti
	}
}

func determineDestination(exact, body, location string, pages int, pct float64) Destination {
	switch {
	case exact != "":
		return DestinationDNM
	case strings.Contains(strings.ToLower(body), "email"):
		return DestinationDNM
	case pct >= highConfidencePct:
		return DestinationDNM
	case location == "Foreign":
		return DestinationForeign
	case pages <= 1:
		return DestinationNatioSingle
	default:
		return DestinationNatioMulti
	}
}
