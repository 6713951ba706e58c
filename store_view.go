package lsmkv

import (
	"errors"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// 合并全部 sstable 与 memtable，得到当前全部有效数据组成的有序表.
// sstable 由旧到新写入，memtable 最后写入，新数据覆盖旧数据，删除标记则移除 key
func (s *Store) mergedView() (*rbt.Tree, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	view := rbt.NewWithStringComparator()
	apply := func(kv *memtable.KV) {
		if kv.Value.Tombstone {
			view.Remove(string(kv.Key))
			return
		}
		view.Put(string(kv.Key), kv.Value.Data)
	}

	for _, node := range s.sstManager.Nodes() {
		iter := node.Iterator()
		for iter.Next() {
			apply(iter.KV())
		}

		err := iter.Err()
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrCorruptedSSTable) {
			return nil, err
		}
		// 与点查一致，损坏的 sstable 中尚未读到的部分视为不存在
		s.logger.Warn("skip corrupted sstable on scan", zap.String("file", sstFile(node.Seq())), zap.Error(err))
	}

	for _, kv := range s.memTable.All() {
		apply(kv)
	}
	return view, nil
}

// 按 key 升序输出有序表中的全部数据
func viewEntries(view *rbt.Tree) []*memtable.KV {
	kvs := make([]*memtable.KV, 0, view.Size())
	it := view.Iterator()
	for it.Next() {
		kvs = append(kvs, &memtable.KV{
			Key:   []byte(it.Key().(string)),
			Value: memtable.Present(it.Value().([]byte)),
		})
	}
	return kvs
}
