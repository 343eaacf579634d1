package dumpdir

import "strings"

const reportedToItemName = "reported_to"

// ReportedToEntry is the structured result of parsing one reported_to line.
type ReportedToEntry struct {
	Prefix string // the prefix the line was matched with, whitespace-trimmed
	URL    string
	Msg    string
}

// AddReportedTo appends line to the reported_to log unless an identical
// line is already present, in which case it is a no-op. The handle must
// hold the lock.
func (h *Handle) AddReportedTo(line string) error {
	h.requireLocked("AddReportedTo")

	existing, _, err := h.LoadText(reportedToItemName, FlagFailQuietlyOnMissing)
	if err != nil {
		return err
	}

	for _, l := range strings.Split(existing, "\n") {
		if l == line {
			return nil
		}
	}

	var b strings.Builder
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(line)
	b.WriteByte('\n')

	return h.SaveText(reportedToItemName, b.String())
}

// FindInReportedTo scans the reported_to log for the last line beginning
// with prefix and parses its key=value tokens. ok is false if no line
// matches or the file is absent.
func (h *Handle) FindInReportedTo(prefix string) (entry ReportedToEntry, ok bool, err error) {
	content, _, err := h.LoadText(reportedToItemName, FlagFailQuietlyOnMissing)
	if err != nil {
		return ReportedToEntry{}, false, err
	}

	var match string
	found := false
	for _, l := range strings.Split(content, "\n") {
		if strings.HasPrefix(l, prefix) {
			match = l
			found = true
		}
	}
	if !found {
		return ReportedToEntry{}, false, nil
	}

	return parseReportedToLine(prefix, match), true, nil
}

// parseReportedToLine tokenizes the text following prefix on whitespace.
// "URL=x" overwrites the URL field; "MSG=..." consumes the remainder of
// the line verbatim (preserving internal whitespace) and ends parsing;
// unrecognized tokens are ignored for forward compatibility.
func parseReportedToLine(prefix, line string) ReportedToEntry {
	entry := ReportedToEntry{Prefix: strings.TrimSpace(prefix)}
	rest := strings.TrimPrefix(line, prefix)

	i := 0
	for i < len(rest) {
		for i < len(rest) && isTokenSpace(rest[i]) {
			i++
		}
		if i >= len(rest) {
			break
		}

		if strings.HasPrefix(rest[i:], "MSG=") {
			entry.Msg = rest[i+len("MSG="):]
			break
		}

		start := i
		for i < len(rest) && !isTokenSpace(rest[i]) {
			i++
		}
		token := rest[start:i]

		if v, found := strings.CutPrefix(token, "URL="); found {
			entry.URL = v
		}
	}

	return entry
}

// isTokenSpace reports whether b is whitespace for the purpose of
// tokenizing a reported_to line: space, tab, and the other ASCII
// whitespace bytes, matching spec.md §4.8's "tokenize on whitespace"
// (plain ' ' alone would miss tab-separated fields).
func isTokenSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
