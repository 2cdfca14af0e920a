package ecs

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.data {
		if a, ok := sa.data[id]; ok {
			fn(id, a, b)
		}
	}
}

// Filter returns the ids of every component in s for which keep reports true.
func Filter[T any](s *Store[T], keep func(EntityID, *T) bool) []EntityID {
	var ids []EntityID
	for id, c := range s.data {
		if keep(id, c) {
			ids = append(ids, id)
		}
	}
	return ids
}
