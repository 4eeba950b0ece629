package chatlist

import (
	"slices"
	"sort"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// SortKey orders chats inside a list, higher first. Pinned chats always sort
// above unpinned ones.
type SortKey uint64

func MakeSortKey(pos tdlib.ChatPosition) SortKey {
	k := uint64(pos.Order)
	if pos.IsPinned {
		k |= 1 << 62
	}

	return SortKey(k)
}

type Entry struct {
	ChatID  int64
	Display string
	Key     SortKey
}

// View is the ordered chat list shown to the user: entries sorted by key
// descending plus an index from chat id to position.
type View struct {
	entries []Entry
	index   map[int64]int
}

func NewView() *View {
	return &View{index: make(map[int64]int)}
}

func (v *View) Len() int {
	return len(v.entries)
}

func (v *View) At(i int) Entry {
	return v.entries[i]
}

// IndexOf returns the row of chatID, or -1.
func (v *View) IndexOf(chatID int64) int {
	if i, ok := v.index[chatID]; ok {
		return i
	}

	return -1
}

func (v *View) Entries() []Entry {
	return slices.Clone(v.entries)
}

// Upsert places e at its rank. A chat whose key did not change keeps its row
// so ties stay in their prior relative order.
func (v *View) Upsert(e Entry) {
	if i, ok := v.index[e.ChatID]; ok {
		if v.entries[i].Key == e.Key {
			v.entries[i].Display = e.Display
			return
		}
		v.removeAt(i)
	}
	// first row with a strictly lower key: new entries go after equal keys
	pos := sort.Search(len(v.entries), func(i int) bool {
		return v.entries[i].Key < e.Key
	})
	v.entries = slices.Insert(v.entries, pos, e)
	v.reindex(pos)
}

func (v *View) Remove(chatID int64) bool {
	i, ok := v.index[chatID]
	if !ok {
		return false
	}
	v.removeAt(i)

	return true
}

// Reset replaces the contents with entries, which must already be sorted.
func (v *View) Reset(entries []Entry) {
	v.entries = entries
	v.index = make(map[int64]int, len(entries))
	v.reindex(0)
}

func (v *View) removeAt(i int) {
	delete(v.index, v.entries[i].ChatID)
	v.entries = slices.Delete(v.entries, i, i+1)
	v.reindex(i)
}

func (v *View) reindex(from int) {
	for i := from; i < len(v.entries); i++ {
		v.index[v.entries[i].ChatID] = i
	}
}
