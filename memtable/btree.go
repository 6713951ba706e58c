package memtable

import (
	"bytes"

	"github.com/google/btree"
)

// btree 的阶数
const btreeDegree = 32

// 基于 google/btree 实现的有序表，未加锁，不保证并发安全
type BTree struct {
	tree *btree.BTreeG[*KV] // 以 kv 对的 key 排序
	size int                // 数据量大小，单位 byte
}

// 构造 btree 实例
func NewBTree() MemTable {
	return &BTree{
		tree: btree.NewG(btreeDegree, func(a, b *KV) bool {
			return bytes.Compare(a.Key, b.Key) < 0
		}),
	}
}

func (b *BTree) Put(key []byte, value Value) {
	old, replaced := b.tree.ReplaceOrInsert(&KV{Key: key, Value: value})
	if replaced {
		b.size += value.Len() - old.Value.Len()
		return
	}
	b.size += len(key) + value.Len()
}

func (b *BTree) Get(key []byte) (Value, bool) {
	kv, ok := b.tree.Get(&KV{Key: key})
	if !ok {
		return Value{}, false
	}
	return kv.Value, true
}

func (b *BTree) All() []*KV {
	kvs := make([]*KV, 0, b.tree.Len())
	b.tree.Ascend(func(kv *KV) bool {
		kvs = append(kvs, &KV{Key: kv.Key, Value: kv.Value})
		return true
	})
	return kvs
}

func (b *BTree) Size() int {
	return b.size
}

func (b *BTree) EntriesCnt() int {
	return b.tree.Len()
}
