package favorites

import (
	"slices"

	"github.com/hitoshi/movieverse/internal/model"
)

// collection は1種類のリストのローカルミラー。
// idsは表示順（追加順）を保ち、setは所属判定に使う。
type collection struct {
	kind  model.ListKind
	state CollectionState
	ids   []string
	set   map[string]struct{}
}

func newCollection(kind model.ListKind) collection {
	return collection{kind: kind, ids: []string{}, set: map[string]struct{}{}}
}

func (c *collection) reset(state CollectionState) {
	c.state = state
	c.ids = []string{}
	c.set = map[string]struct{}{}
}

// replace はスナップショットで全体を置き換える。重複IDは最初の1件のみ残す。
func (c *collection) replace(ids []string) {
	c.ids = make([]string, 0, len(ids))
	c.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := c.set[id]; ok {
			continue
		}
		c.set[id] = struct{}{}
		c.ids = append(c.ids, id)
	}
}

func (c *collection) contains(id string) bool {
	_, ok := c.set[id]
	return ok
}

func (c *collection) add(id string) bool {
	if c.contains(id) {
		return false
	}
	c.set[id] = struct{}{}
	c.ids = append(c.ids, id)
	return true
}

func (c *collection) remove(id string) bool {
	if !c.contains(id) {
		return false
	}
	delete(c.set, id)
	c.ids = slices.DeleteFunc(c.ids, func(s string) bool { return s == id })
	return true
}
