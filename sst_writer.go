package lsmkv

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// 索引项. 记录 key 对应的数据记录在数据文件中的 offset
type Index struct {
	Key    []byte
	Offset uint64
}

// 对应于一个 sstable. 这是写入流程的视角.
//
// 数据写入以 .tmp 结尾的临时文件，Finish 时补齐文件头、fsync 后再重命名为正式文件名，
// 因此目录中的 .sst 文件一定是完整的
type SSTWriter struct {
	conf      *Config
	seq       int32         // sstable 序号
	dataDest  *os.File      // 数据临时文件
	indexDest *os.File      // 索引临时文件
	dataBuf   *bufio.Writer // 数据文件写缓冲
	indexBuf  *bufio.Writer // 索引文件写缓冲

	dataBlock  *Block // 数据记录缓冲区
	indexBlock *Block // 索引记录缓冲区

	offset   uint64   // 下一条数据记录在数据文件中的 offset
	count    uint32   // 已写入的 kv 对数量
	prevKey  []byte   // 前一笔数据的 key
	index    []*Index // 已写入的索引
	finished bool
}

func NewSSTWriter(seq int32, conf *Config) (*SSTWriter, error) {
	dataDest, err := os.OpenFile(tmpFile(conf, sstFile(seq)), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	indexDest, err := os.OpenFile(tmpFile(conf, indexFile(seq)), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		_ = dataDest.Close()
		return nil, err
	}

	s := SSTWriter{
		conf:       conf,
		seq:        seq,
		dataDest:   dataDest,
		indexDest:  indexDest,
		dataBuf:    bufio.NewWriter(dataDest),
		indexBuf:   bufio.NewWriter(indexDest),
		dataBlock:  NewBlock(),
		indexBlock: NewBlock(),
		offset:     sstHeaderSize,
	}

	// 先写入全 0 的文件头占位，Finish 时再补齐 magic 和条目数
	if _, err = s.dataBuf.Write(make([]byte, sstHeaderSize)); err != nil {
		s.Close()
		return nil, err
	}
	return &s, nil
}

// 追加一笔数据. key 必须严格升序
func (s *SSTWriter) Append(key []byte, value memtable.Value) error {
	if s.count > 0 && bytes.Compare(s.prevKey, key) >= 0 {
		return fmt.Errorf("sst %d: key %q is not greater than previous key %q", s.seq, key, s.prevKey)
	}

	// 数据记录与索引记录同步写入
	s.indexBlock.AppendIndex(key, s.offset)
	s.index = append(s.index, &Index{Key: key, Offset: s.offset})
	s.offset += uint64(s.dataBlock.AppendData(key, value))
	s.prevKey = key
	s.count++

	if s.dataBlock.Size() >= blockFlushSize {
		if _, err := s.dataBlock.FlushTo(s.dataBuf); err != nil {
			return err
		}
	}
	if s.indexBlock.Size() >= blockFlushSize {
		if _, err := s.indexBlock.FlushTo(s.indexBuf); err != nil {
			return err
		}
	}
	return nil
}

// 完成 sstable 的全部处理流程: 写入剩余数据、补齐文件头、fsync、重命名为正式文件.
// 返回数据文件大小以及索引
func (s *SSTWriter) Finish() (size uint64, index []*Index, err error) {
	if _, err = s.dataBlock.FlushTo(s.dataBuf); err != nil {
		return 0, nil, err
	}
	if _, err = s.indexBlock.FlushTo(s.indexBuf); err != nil {
		return 0, nil, err
	}
	if err = s.dataBuf.Flush(); err != nil {
		return 0, nil, err
	}
	if err = s.indexBuf.Flush(); err != nil {
		return 0, nil, err
	}

	if _, err = s.dataDest.WriteAt(encodeHeader(s.count), 0); err != nil {
		return 0, nil, err
	}

	if err = s.dataDest.Sync(); err != nil {
		return 0, nil, err
	}
	if err = s.indexDest.Sync(); err != nil {
		return 0, nil, err
	}

	// 先落索引文件，再落数据文件. 只有存在 .sst 文件时才会被加载
	if err = os.Rename(tmpFile(s.conf, indexFile(s.seq)), path.Join(s.conf.Dir, indexFile(s.seq))); err != nil {
		return 0, nil, err
	}
	if err = os.Rename(tmpFile(s.conf, sstFile(s.seq)), path.Join(s.conf.Dir, sstFile(s.seq))); err != nil {
		return 0, nil, err
	}

	s.finished = true
	return s.offset, s.index, nil
}

// 关闭文件. 未 Finish 的临时文件会被删除
func (s *SSTWriter) Close() {
	_ = s.dataDest.Close()
	_ = s.indexDest.Close()
	s.dataBlock.clear()
	s.indexBlock.clear()
	if !s.finished {
		_ = os.Remove(tmpFile(s.conf, sstFile(s.seq)))
		_ = os.Remove(tmpFile(s.conf, indexFile(s.seq)))
	}
}

func tmpFile(conf *Config, file string) string {
	return path.Join(conf.Dir, file+".tmp")
}
