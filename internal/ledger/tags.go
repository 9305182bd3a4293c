package ledger

import "strings"

// TagSet is an ordered, case-sensitive set of tags. Order is insertion order.
type TagSet []string

// ParseTags splits a comma separated tag list, trimming blanks and dropping
// empty entries and repeats.
func ParseTags(s string) TagSet {
	var out TagSet
	for _, raw := range strings.Split(s, ",") {
		t := strings.TrimSpace(raw)
		if t == "" || out.Has(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// String renders the set as "a, b".
func (t TagSet) String() string { return strings.Join(t, ", ") }

// Has reports whether tag is present.
func (t TagSet) Has(tag string) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// HasPrefix reports whether any tag starts with prefix.
func (t TagSet) HasPrefix(prefix string) bool {
	for _, x := range t {
		if strings.HasPrefix(x, prefix) {
			return true
		}
	}
	return false
}

// Add appends tags that are not already present and returns the new set
// together with the tags that were actually added.
func (t TagSet) Add(tags ...string) (TagSet, []string) {
	var added []string
	out := t
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || out.Has(tag) {
			continue
		}
		out = append(out, tag)
		added = append(added, tag)
	}
	return out, added
}

// Clone returns a copy that does not share backing storage with t.
func (t TagSet) Clone() TagSet {
	if t == nil {
		return nil
	}
	return append(TagSet(nil), t...)
}
