package lsmkv

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
	"github.com/xiaoxuxiansheng/lsmkv/wal"
)

// 1 构造存储引擎，基于 config 与磁盘文件映射
// 2 写入、删除一笔数据
// 3 查询一笔数据，或者遍历全部数据
type Store struct {
	conf   *Config
	logger *zap.Logger

	// 读写 memtable，写满后溢写为 sstable
	memTable *memtable.Buffer

	// 预写日志写入口
	walWriter *wal.WALWriter

	// 全部 sstable
	sstManager *SSTManager

	closed bool
}

// 构建存储引擎:
// 1 读取 sst 文件，还原出全部 sstable
// 2 读取 wal 文件，还原出 memtable
// 3 倘若还原出的 memtable 已经写满，立即溢写
func NewStore(conf *Config) (*Store, error) {
	sstManager, err := NewSSTManager(conf)
	if err != nil {
		return nil, err
	}

	s := Store{
		conf:       conf,
		logger:     conf.Logger.Named("store"),
		memTable:   memtable.NewBuffer(conf.MemTableLimit, conf.MemTableConstructor),
		sstManager: sstManager,
	}

	if err = s.constructMemtable(); err != nil {
		// 预写日志可能已经打开，一并关闭
		_ = s.Close()
		return nil, err
	}

	if s.memTable.IsFull() {
		if err = s.flushLocked(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return &s, nil
}

// 写入一组 kv 对. value 为 nil 时视为空值
func (s *Store) Put(key, value []byte) error {
	return s.write(key, memtable.Present(value))
}

// 删除 key. 写入一笔删除标记
func (s *Store) Delete(key []byte) error {
	return s.write(key, memtable.Deleted())
}

// 根据 key 读取数据. 先读 memtable，再由新到旧读 sstable
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if err := s.readable(key); err != nil {
		return nil, false, err
	}

	// 1 memtable 中出现过的 key，以 memtable 为准
	if value, ok := s.memTable.Lookup(key); ok {
		if value.Tombstone {
			return nil, false, nil
		}
		return value.Data, true, nil
	}

	// 2 交给 sstable 管理器
	return s.sstManager.Get(key)
}

func (s *Store) ContainsKey(key []byte) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// 有效 key 的数量
func (s *Store) Size() (int, error) {
	view, err := s.mergedView()
	if err != nil {
		return 0, err
	}
	return view.Size(), nil
}

// 按 key 升序返回全部有效 key
func (s *Store) KeySet() ([][]byte, error) {
	view, err := s.mergedView()
	if err != nil {
		return nil, err
	}

	keys := make([][]byte, 0, view.Size())
	for _, kv := range viewEntries(view) {
		keys = append(keys, kv.Key)
	}
	return keys, nil
}

// 按 key 升序返回全部有效的 kv 对
func (s *Store) EntrySet() ([]*memtable.KV, error) {
	view, err := s.mergedView()
	if err != nil {
		return nil, err
	}
	return viewEntries(view), nil
}

// 按 key 升序逐笔写入. 不保证整体的原子性，中途失败时此前的写入依然生效
func (s *Store) PutAll(kvs map[string][]byte) error {
	keys := make([]string, 0, len(kvs))
	for key := range kvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := s.Put([]byte(key), kvs[key]); err != nil {
			return fmt.Errorf("put %q: %w", key, err)
		}
	}
	return nil
}

// 删除全部有效 key
func (s *Store) Clear() error {
	keys, err := s.KeySet()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err = s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// 强制把 memtable 溢写为 sstable. memtable 为空时不做任何处理
func (s *Store) Flush() error {
	if s.closed {
		return ErrStoreClosed
	}
	if s.memTable.Len() == 0 {
		return nil
	}
	return s.flushLocked()
}

// 强制将全部 sstable 合并为一个
func (s *Store) Compact() error {
	if s.closed {
		return ErrStoreClosed
	}
	return s.sstManager.Compact()
}

// 存储引擎的运行状态
type Stats struct {
	MemTableEntries int    // memtable 中的 kv 对数量，包括删除标记
	MemTableBytes   int    // memtable 中 key 与 value 的总大小
	WALBytes        int64  // 预写日志文件大小
	SSTables        int    // sstable 数量
	SSTableEntries  int    // 全部 sstable 中的 kv 对数量，包括删除标记
	SSTableBytes    uint64 // 全部 sstable 数据文件的总大小
}

func (s *Store) Stats() (Stats, error) {
	if s.closed {
		return Stats{}, ErrStoreClosed
	}

	walBytes, err := s.walWriter.Size()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		MemTableEntries: s.memTable.Len(),
		MemTableBytes:   s.memTable.Size(),
		WALBytes:        walBytes,
		SSTables:        s.sstManager.Tables(),
	}
	for _, node := range s.sstManager.Nodes() {
		stats.SSTableEntries += node.Len()
		stats.SSTableBytes += node.Size()
	}
	return stats, nil
}

// 关闭存储引擎. memtable 中的数据保留在预写日志中，下次启动时还原
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.walWriter != nil {
		err = multierr.Append(err, s.walWriter.Close())
	}
	return multierr.Append(err, s.sstManager.Close())
}

// 写入流程: 预写日志 -> memtable -> (写满) 溢写 -> 清空预写日志 -> 按需 compact
func (s *Store) write(key []byte, value memtable.Value) error {
	if s.closed {
		return ErrStoreClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	// 1 数据预写入预写日志中，防止因宕机引起 memtable 数据丢失
	if err := s.walWriter.Write(&memtable.KV{Key: key, Value: value}); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}

	// 2 数据写入 memtable
	s.memTable.Put(key, value)

	// 3 memtable 未写满，直接返回
	if !s.memTable.IsFull() {
		return nil
	}

	// 4 溢写并按需 compact
	return s.flushLocked()
}

// 溢写 memtable，清空预写日志，再按需 compact. 三者顺序不能调换：
// 溢写成功、清空日志之前宕机，重启后日志重放的结果与 sstable 中的数据一致
func (s *Store) flushLocked() error {
	if err := s.memTable.Flush(func(kvs []*memtable.KV) error {
		_, err := s.sstManager.Flush(kvs)
		return err
	}); err != nil {
		return fmt.Errorf("flush memtable: %w", err)
	}

	if err := s.walWriter.Clear(); err != nil {
		return fmt.Errorf("clear wal: %w", err)
	}

	if err := s.sstManager.CompactIfNeeded(); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

func (s *Store) readable(key []byte) error {
	if s.closed {
		return ErrStoreClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return nil
}
