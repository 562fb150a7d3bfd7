package learning

import "strings"

type OutlineSection struct {
	Section     string   `json:"section"`
	Subsections []string `json:"subsections"`
}

type Outline []OutlineSection

// ContentEntry is one generated explanation. Subsection is null for the
// section-level entry.
type ContentEntry struct {
	Section     string  `json:"section"`
	Subsection  *string `json:"subsection"`
	Explanation string  `json:"explanation"`
}

// Clean drops sections with blank titles and blank subsections. Everything
// else, order included, is kept as given.
func (o Outline) Clean() Outline {
	out := make(Outline, 0, len(o))
	for _, sec := range o {
		title := strings.TrimSpace(sec.Section)
		if title == "" {
			continue
		}
		subs := make([]string, 0, len(sec.Subsections))
		for _, sub := range sec.Subsections {
			if s := strings.TrimSpace(sub); s != "" {
				subs = append(subs, s)
			}
		}
		out = append(out, OutlineSection{Section: title, Subsections: subs})
	}
	return out
}

// EntryCount is the number of content entries a complete run produces.
func (o Outline) EntryCount() int {
	n := 0
	for _, sec := range o {
		n += 1 + len(sec.Subsections)
	}
	return n
}

// ContentPlan lists the (section, subsection) pairs in generation order.
func (o Outline) ContentPlan() []ContentEntry {
	plan := make([]ContentEntry, 0, o.EntryCount())
	for _, sec := range o {
		plan = append(plan, ContentEntry{Section: sec.Section})
		for _, sub := range sec.Subsections {
			sub := sub
			plan = append(plan, ContentEntry{Section: sec.Section, Subsection: &sub})
		}
	}
	return plan
}
