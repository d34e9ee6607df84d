package types

// FailureKind classifies why an extraction produced no lines.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTimeout   FailureKind = "timeout"
	FailureStructure FailureKind = "structure"
	FailureEmpty     FailureKind = "empty"
	FailureNavigate  FailureKind = "navigate"
)

// ExtractionResult is either a non-empty set of lines or a failure kind, never both.
type ExtractionResult struct {
	// Lines holds the extracted statements in document order.
	Lines []string

	// Strategy names the strategy that produced Lines.
	Strategy string

	// Failure is set when Lines is empty.
	Failure FailureKind

	// URL is the page the lines were extracted from.
	URL string
}

// Extracted builds a successful result. An empty line set becomes FailureEmpty.
func Extracted(url, strategy string, lines []string) ExtractionResult {
	if len(lines) == 0 {
		return Failed(url, FailureEmpty)
	}
	return ExtractionResult{Lines: lines, Strategy: strategy, URL: url}
}

// Failed builds a failed result.
func Failed(url string, kind FailureKind) ExtractionResult {
	if kind == FailureNone {
		kind = FailureEmpty
	}
	return ExtractionResult{Failure: kind, URL: url}
}

// OK reports whether the result carries lines.
func (r ExtractionResult) OK() bool {
	return r.Failure == FailureNone && len(r.Lines) > 0
}

// Resolution records the outcome of a date-offset search.
type Resolution struct {
	// URL is the article URL, empty when nothing was found.
	URL string

	// Offset is the date offset that produced URL.
	Offset int

	// Tried lists every offset attempted, in order.
	Tried []int
}

// Found reports whether an article URL was resolved.
func (r Resolution) Found() bool { return r.URL != "" }
