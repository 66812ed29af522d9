package overlay

import (
	"fmt"
	"sync"
)

// Registry 是有序的叠加音轨集合。
// ID 按插入顺序递增分配，删除不会导致重新编号。
type Registry struct {
	mu     sync.RWMutex
	items  []Overlay
	nextID int
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{}
}

// Add 校验并追加叠加音轨，返回分配的 ID。
func (r *Registry) Add(o Overlay) (int, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o.ID = r.nextID
	r.nextID++
	r.items = append(r.items, o)
	return o.ID, nil
}

// Remove 删除指定 ID 的叠加音轨。
func (r *Registry) Remove(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("删除 overlay %d: %w", id, ErrNotFound)
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	return nil
}

// Update 在副本上执行 mutate，校验通过后再写回。
// ID 和 Kind 不允许被修改。
func (r *Registry) Update(id int, mutate func(*Overlay) error) (Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return Overlay{}, fmt.Errorf("更新 overlay %d: %w", id, ErrNotFound)
	}

	updated := r.items[i]
	if err := mutate(&updated); err != nil {
		return r.items[i], err
	}
	updated.ID = r.items[i].ID
	updated.Kind = r.items[i].Kind
	if err := updated.Validate(); err != nil {
		return r.items[i], err
	}

	r.items[i] = updated
	return updated, nil
}

// Get 返回指定 ID 的叠加音轨副本。
func (r *Registry) Get(id int) (Overlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexLocked(id)
	if i < 0 {
		return Overlay{}, false
	}
	return r.items[i], true
}

// List 按注册顺序返回所有叠加音轨的副本。
func (r *Registry) List() []Overlay {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Overlay, len(r.items))
	copy(out, r.items)
	return out
}

// Len 返回叠加音轨数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Replace 用工程文件中的叠加音轨整体替换注册表内容。
// 解说沿用文件中记录的 position 作为 ID（前提是不破坏递增顺序），
// 其余按顺序分配新 ID。
func (r *Registry) Replace(overlays []Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]Overlay, 0, len(overlays))
	r.nextID = 0
	for _, o := range overlays {
		id := r.nextID
		if o.IsCommentary() && o.ID > id {
			id = o.ID
		}
		o.ID = id
		r.nextID = id + 1
		r.items = append(r.items, o)
	}
}

// Serialize 将视频路径与当前叠加音轨编码为工程文件文本。
func (r *Registry) Serialize(videoPath string) string {
	return Serialize(videoPath, r.List())
}

func (r *Registry) indexLocked(id int) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}
