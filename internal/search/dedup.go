package search

// seenSet remembers every (title, url) pair cited during a session
type seenSet struct {
	keys map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{keys: make(map[string]struct{})}
}

func dedupKey(title, url string) string {
	return title + "|" + url
}

// add records the pair as cited
func (s *seenSet) add(title, url string) {
	s.keys[dedupKey(title, url)] = struct{}{}
}

func (s *seenSet) contains(title, url string) bool {
	_, ok := s.keys[dedupKey(title, url)]
	return ok
}
