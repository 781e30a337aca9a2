package legal

import (
	"regexp"
	"strings"
)

// Fallback labels when no keyword matches.
const (
	DefaultDocumentType = "legal_document"
	UnknownJurisdiction = "unknown"
)

type keywordClass struct {
	label string
	re    *regexp.Regexp
}

// keywords builds a case-insensitive matcher for whole-word occurrences of any keyword.
// Keywords may contain spaces and dots ("u.s.", "title deed").
func keywords(label string, words ...string) keywordClass {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return keywordClass{
		label: label,
		re:    regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`),
	}
}

var documentTypes = []keywordClass{
	keywords("constitution", "constitution", "const", "fundamental law"),
	keywords("statute", "act", "code", "procedure", "cpc", "ipc", "crpc", "easement"),
	keywords("contract", "contract", "agreement", "deed", "mou", "memorandum"),
	keywords("property_law", "property", "real estate", "land", "title deed"),
	keywords("criminal_law", "criminal", "penal", "bns", "bnss", "bsa", "police"),
	keywords("civil_law", "civil", "tort", "damages", "liability"),
	keywords("court_decision", "judgment", "order", "decision", "ruling", "verdict"),
	keywords("regulation", "regulation", "rule", "guideline", "circular"),
	keywords("legal_opinion", "opinion", "advice", "counsel", "brief"),
}

var weakDocumentTypes = []keywordClass{
	keywords("statute", "section", "clause", "article", "chapter"),
	keywords("court_decision", "plaintiff", "defendant", "court"),
}

var jurisdictions = []keywordClass{
	keywords("india", "india", "indian", "delhi", "mumbai", "supreme court of india", "high court"),
	keywords("federal", "united states", "u.s.", "federal", "supreme court"),
	keywords("state", "state of", "california", "new york", "texas"),
	keywords("international", "international", "treaty", "convention", "protocol"),
}

var concepts = []keywordClass{
	keywords("contract_law", "contract", "agreement", "consideration", "breach", "damages"),
	keywords("tort_law", "negligence", "liability", "duty", "damages", "injury"),
	keywords("criminal_law", "criminal", "felony", "misdemeanor", "prosecution", "defendant"),
	keywords("constitutional_law", "constitutional", "amendment", "rights", "due process"),
	keywords("property_law", "property", "ownership", "title", "easement", "zoning"),
}

// classifyScan bounds how much content is scanned for type and jurisdiction keywords.
const classifyScan = 5000

func firstMatch(classes []keywordClass, s string) string {
	for _, c := range classes {
		if c.re.MatchString(s) {
			return c.label
		}
	}
	return ""
}

// filenameWords turns "civil_procedure-code.pdf" into "civil procedure code pdf".
func filenameWords(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '/', '\\':
			return ' '
		}
		return r
	}, name)
}

func head(text string) string {
	if len(text) <= classifyScan {
		return text
	}
	return text[:classifyScan]
}

// ClassifyDocumentType checks the filename first, then content, then weak indicators.
func ClassifyDocumentType(filename, text string) string {
	if filename != "" {
		if t := firstMatch(documentTypes, filenameWords(filename)); t != "" {
			return t
		}
	}
	h := head(text)
	if t := firstMatch(documentTypes, h); t != "" {
		return t
	}
	if t := firstMatch(weakDocumentTypes, h); t != "" {
		return t
	}
	return DefaultDocumentType
}

// ClassifyJurisdiction checks the filename first, then content.
func ClassifyJurisdiction(filename, text string) string {
	if filename != "" {
		if j := firstMatch(jurisdictions, filenameWords(filename)); j != "" {
			return j
		}
	}
	if j := firstMatch(jurisdictions, head(text)); j != "" {
		return j
	}
	return UnknownJurisdiction
}

// Concepts returns every concept whose keywords occur in text, in table order.
func Concepts(text string) []string {
	var out []string
	for _, c := range concepts {
		if c.re.MatchString(text) {
			out = append(out, c.label)
		}
	}
	return out
}

// ConceptNames lists all concept tags.
func ConceptNames() []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.label
	}
	return out
}
