package labels

type key struct {
	Namespace string
	Value     string
}

// Unordered membership set of labels, keyed by (namespace, value).
type Set struct {
	m map[key]struct{}
}

func NewSet(ls ...Label) Set {
	s := Set{m: make(map[key]struct{}, len(ls))}
	for _, l := range ls {
		s.m[key{l.Namespace, l.Value}] = struct{}{}
	}
	return s
}

func (s Set) Has(l Label) bool {
	_, ok := s.m[key{l.Namespace, l.Value}]
	return ok
}

func (s Set) Len() int {
	return len(s.m)
}

// true if every label in `ls` is in the set. An empty `ls` is always a subset.
func (s Set) ContainsAll(ls []Label) bool {
	for _, l := range ls {
		if !s.Has(l) {
			return false
		}
	}
	return true
}

// true if none of the labels in `ls` are in the set.
func (s Set) ContainsNone(ls []Label) bool {
	for _, l := range ls {
		if s.Has(l) {
			return false
		}
	}
	return true
}

// Returns a copy of `ls` with duplicates removed, keeping first-seen order.
func Dedupe(ls []Label) []Label {
	seen := make(map[key]bool, len(ls))
	out := make([]Label, 0, len(ls))
	for _, l := range ls {
		k := key{l.Namespace, l.Value}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

// Values of all labels in `ls` with the given namespace, in order.
func ValuesInNamespace(ls []Label, namespace string) []string {
	out := []string{}
	for _, l := range ls {
		if l.Namespace == namespace {
			out = append(out, l.Value)
		}
	}
	return out
}
