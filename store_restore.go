package lsmkv

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/wal"
)

// 读取 wal 还原出 memtable，并打开预写日志写入口
func (s *Store) constructMemtable() error {
	// 1 按写入顺序读取全部记录
	kvs, validSize, err := wal.ReadFile(s.conf.WALFile)
	tornTail := errors.Is(err, wal.ErrTornTail)
	if err != nil && !tornTail {
		return fmt.Errorf("restore wal %s: %w", s.conf.WALFile, err)
	}

	// 2 逐笔重放. 重放是幂等的，同一个 key 只保留最后一次写入
	for _, kv := range kvs {
		s.memTable.Put(kv.Key, kv.Value)
	}

	// 3 打开写入口，后续的记录追加到文件末尾
	if s.walWriter, err = wal.NewWALWriter(s.conf.WALFile); err != nil {
		return err
	}

	// 4 尾部不完整的记录来自宕机时写了一半的数据，截断之，避免后续记录接在残缺的行后面
	if tornTail {
		s.logger.Warn("discard torn wal tail",
			zap.String("file", s.conf.WALFile),
			zap.Int64("valid_size", validSize),
			zap.Int("records", len(kvs)),
		)
		if err = s.walWriter.Truncate(validSize); err != nil {
			return fmt.Errorf("truncate wal %s: %w", s.conf.WALFile, err)
		}
	}

	s.logger.Debug("memtable restored", zap.Int("records", len(kvs)), zap.Int("entries", s.memTable.Len()))
	return nil
}
