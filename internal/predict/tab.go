package predict

import "github.com/xkilldash9x/presage/api/schemas"

// SelectTabTargets returns the tab stops a traversal is about to visit:
// the newly focused element plus up to offset further stops in the
// traversal direction, in traversal order. The window is clipped at the
// ends of the tabbable set, never wrapped. When the focused handle is not
// present in the set (the cache went stale between focus and resolution)
// ok is false and the caller is expected to skip the event.
func SelectTabTargets(tabbables []schemas.ElementHandle, focused schemas.ElementHandle, dir schemas.TraversalDirection, offset int) (targets []schemas.ElementHandle, ok bool) {
	idx := -1
	for i, h := range tabbables {
		if h == focused {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	if offset < 0 {
		offset = 0
	}

	targets = make([]schemas.ElementHandle, 0, offset+1)
	if dir == schemas.TraversalReverse {
		for i := idx; i >= 0 && i >= idx-offset; i-- {
			targets = append(targets, tabbables[i])
		}
	} else {
		for i := idx; i < len(tabbables) && i <= idx+offset; i++ {
			targets = append(targets, tabbables[i])
		}
	}
	return targets, true
}
