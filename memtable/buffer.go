package memtable

// 带容量上限的 memtable. 对外唯一的写缓冲入口，其内部的有序表不会被其他组件直接访问.
//
// 单线程使用. 倘若改为并发访问，Flush 中的快照与清空需要在同一把锁内完成，
// 否则快照之后、清空之前写入的数据会丢失.
type Buffer struct {
	limit       int                 // kv 对数量上限，删除标记同样计入
	constructor MemTableConstructor // 有序表构造器，清空时用于重建
	table       MemTable            // 当前的有序表
}

func NewBuffer(limit int, constructor MemTableConstructor) *Buffer {
	return &Buffer{
		limit:       limit,
		constructor: constructor,
		table:       constructor(),
	}
}

// 写入一笔数据. key 和 value 会被拷贝，调用方可以复用自己的 buffer
func (b *Buffer) Put(key []byte, value Value) {
	k := append([]byte{}, key...)
	if !value.Tombstone {
		value = Present(append([]byte{}, value.Data...))
	}
	b.table.Put(k, value)
}

// 读取数据. 删除标记在这一层被解析为不存在
func (b *Buffer) Get(key []byte) ([]byte, bool) {
	value, ok := b.table.Get(key)
	if !ok || value.Tombstone {
		return nil, false
	}
	return value.Data, true
}

// 读取原始数据，包括删除标记. 第二个返回值标识 key 是否在 memtable 中出现过
func (b *Buffer) Lookup(key []byte) (Value, bool) {
	return b.table.Get(key)
}

// key 以真实数据或删除标记的形式存在于 memtable 中
func (b *Buffer) ContainsKey(key []byte) bool {
	_, ok := b.table.Get(key)
	return ok
}

func (b *Buffer) IsFull() bool {
	return b.table.EntriesCnt() >= b.limit
}

func (b *Buffer) Len() int {
	return b.table.EntriesCnt()
}

func (b *Buffer) Size() int {
	return b.table.Size()
}

// 按 key 升序返回全部数据，包括删除标记
func (b *Buffer) All() []*KV {
	return b.table.All()
}

// 将有序快照交给 fn 落盘，fn 成功后清空 memtable. fn 失败时数据保持不变
func (b *Buffer) Flush(fn func(kvs []*KV) error) error {
	if err := fn(b.table.All()); err != nil {
		return err
	}
	b.table = b.constructor()
	return nil
}
