package lsmkv

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/xiaoxuxiansheng/lsmkv/filter"
	"github.com/xiaoxuxiansheng/lsmkv/memtable"
	"github.com/xiaoxuxiansheng/lsmkv/util"
)

// 一个已加载的 sstable. 索引常驻内存，数据按需定位读取
type Node struct {
	conf      *Config
	seq       int32      // sstable 的序号，对应文件名 seq.sst / seq.idx. 序号越大数据越新
	size      uint64     // 数据文件大小，单位 byte
	index     []*Index   // 全量索引，按 key 升序
	bitmap    []byte     // 由索引中的 key 生成的过滤器 bitmap
	sstReader *SSTReader // 读取数据文件的入口
}

// 加载序号为 seq 的 sstable: 校验文件头，读入全量索引，并生成过滤器
func OpenNode(conf *Config, seq int32) (*Node, error) {
	sstReader, err := NewSSTReader(seq, conf)
	if err != nil {
		return nil, err
	}

	node, err := newNode(conf, seq, sstReader)
	if err != nil {
		_ = sstReader.Close()
		return nil, err
	}
	return node, nil
}

func newNode(conf *Config, seq int32, sstReader *SSTReader) (*Node, error) {
	count, err := sstReader.ReadHeader()
	if err != nil {
		return nil, err
	}

	index, err := sstReader.ReadIndex()
	if err != nil {
		return nil, err
	}
	if uint32(len(index)) != count {
		return nil, fmt.Errorf("%w: %s header count %d, index entries %d", ErrCorruptedSSTable, sstFile(seq), count, len(index))
	}
	for _, idx := range index {
		if !validRecordOffset(idx.Offset, sstReader.Size()) {
			return nil, fmt.Errorf("%w: %s index offset %d of key %q out of range", ErrCorruptedSSTable, sstFile(seq), idx.Offset, idx.Key)
		}
	}

	keys := make([][]byte, 0, len(index))
	for _, idx := range index {
		keys = append(keys, idx.Key)
	}
	bitmap := filter.Build(conf.Filter, keys)

	return &Node{
		conf:      conf,
		seq:       seq,
		size:      sstReader.Size(),
		index:     index,
		bitmap:    bitmap,
		sstReader: sstReader,
	}, nil
}

// 查询 key. 第二个返回值标识 key 是否存在于该 sstable 中，删除标记同样视为存在
func (n *Node) Get(key []byte) (memtable.Value, bool, error) {
	// key 不在 sstable 的 key 范围内
	if !n.inRange(key) {
		return memtable.Value{}, false, nil
	}

	// 布隆过滤器辅助判断 key 是否存在
	if !n.conf.Filter.Exist(n.bitmap, key) {
		return memtable.Value{}, false, nil
	}

	idx, ok := n.binarySearchIndex(key)
	if !ok {
		return memtable.Value{}, false, nil
	}

	recordKey, value, err := n.sstReader.ReadRecord(idx.Offset)
	if err != nil {
		return memtable.Value{}, false, err
	}
	if !bytes.Equal(recordKey, key) {
		return memtable.Value{}, false, fmt.Errorf("%w: %s index points to key %q, expect %q", ErrCorruptedSSTable, sstFile(n.seq), recordKey, key)
	}
	return value, true, nil
}

// 返回一个从头开始的迭代器. 每次调用都会得到一个新的迭代器
func (n *Node) Iterator() *NodeIterator {
	return &NodeIterator{node: n, pos: -1}
}

// 按 key 升序读取全部数据，包括删除标记
func (n *Node) GetAll() ([]*memtable.KV, error) {
	kvs := make([]*memtable.KV, 0, len(n.index))
	iter := n.Iterator()
	for iter.Next() {
		kvs = append(kvs, iter.KV())
	}
	return kvs, iter.Err()
}

// 重新校验文件头 magic number
func (n *Node) Verify() error {
	_, err := n.sstReader.ReadHeader()
	return err
}

func (n *Node) Seq() int32 {
	return n.seq
}

func (n *Node) Size() uint64 {
	return n.size
}

// kv 对数量，包括删除标记
func (n *Node) Len() int {
	return len(n.index)
}

func (n *Node) Start() []byte {
	if len(n.index) == 0 {
		return nil
	}
	return n.index[0].Key
}

func (n *Node) End() []byte {
	if len(n.index) == 0 {
		return nil
	}
	return n.index[len(n.index)-1].Key
}

// 销毁节点: 关闭文件并删除数据文件与索引文件. 删除失败时按配置重试
func (n *Node) Destroy() error {
	_ = n.sstReader.Close()

	for _, file := range []string{sstFile(n.seq), indexFile(n.seq)} {
		file := path.Join(n.conf.Dir, file)
		if err := util.Retry(n.conf.DeleteAttempts, n.conf.DeleteBackoff, func() error {
			err := os.Remove(file)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Close() error {
	return n.sstReader.Close()
}

func (n *Node) inRange(key []byte) bool {
	if len(n.index) == 0 {
		return false
	}
	return bytes.Compare(key, n.Start()) >= 0 && bytes.Compare(key, n.End()) <= 0
}

// 二分查找 key 对应的索引项
func (n *Node) binarySearchIndex(key []byte) (*Index, bool) {
	i := sort.Search(len(n.index), func(i int) bool {
		return bytes.Compare(n.index[i].Key, key) >= 0
	})
	if i < len(n.index) && bytes.Equal(n.index[i].Key, key) {
		return n.index[i], true
	}
	return nil, false
}

// sstable 迭代器. 沿索引顺序遍历，每条记录一次定位读
type NodeIterator struct {
	node *Node
	pos  int
	kv   *memtable.KV
	err  error
}

// 前进到下一条记录. 遍历结束或出错时返回 false，错误通过 Err 获取
func (it *NodeIterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.node.index) {
		return false
	}
	it.pos++

	idx := it.node.index[it.pos]
	key, value, err := it.node.sstReader.ReadRecord(idx.Offset)
	if err != nil {
		it.err = err
		return false
	}
	if !bytes.Equal(key, idx.Key) {
		it.err = fmt.Errorf("%w: %s index points to key %q, expect %q", ErrCorruptedSSTable, sstFile(it.node.seq), key, idx.Key)
		return false
	}

	it.kv = &memtable.KV{Key: key, Value: value}
	return true
}

func (it *NodeIterator) KV() *memtable.KV {
	return it.kv
}

func (it *NodeIterator) Err() error {
	return it.err
}
