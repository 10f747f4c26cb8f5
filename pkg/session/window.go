package session

// DedupWindow is the number of most recent registered ids remembered per peer.
const DedupWindow = 128

// idWindow remembers the last DedupWindow ids in arrival order.
type idWindow struct {
	ring [DedupWindow]uint32
	next int
	size int
	set  map[uint32]struct{}
}

func newIDWindow() *idWindow {
	return &idWindow{set: make(map[uint32]struct{}, DedupWindow)}
}

func (w *idWindow) contains(id uint32) bool {
	_, ok := w.set[id]
	return ok
}

// add records id, evicting the oldest id once the window is full.
func (w *idWindow) add(id uint32) {
	if w.size == DedupWindow {
		delete(w.set, w.ring[w.next])
	} else {
		w.size++
	}
	w.ring[w.next] = id
	w.next = (w.next + 1) % DedupWindow
	w.set[id] = struct{}{}
}

func (w *idWindow) reset() {
	w.next = 0
	w.size = 0
	clear(w.set)
}
