package lsmkv

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// 对应于一个 sstable. 这是读取流程的视角. 数据文件只做定位读 (ReadAt)，不依赖文件游标
type SSTReader struct {
	conf *Config
	seq  int32    // sstable 序号
	src  *os.File // 数据文件
	size uint64   // 数据文件大小，单位 byte
}

func NewSSTReader(seq int32, conf *Config) (*SSTReader, error) {
	src, err := os.OpenFile(sstPath(conf, seq), os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}

	info, err := src.Stat()
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	return &SSTReader{
		conf: conf,
		seq:  seq,
		src:  src,
		size: uint64(info.Size()),
	}, nil
}

func (s *SSTReader) Size() uint64 {
	return s.size
}

// 读取并校验数据文件头，返回条目数
func (s *SSTReader) ReadHeader() (uint32, error) {
	header := make([]byte, sstHeaderSize)
	if err := s.readAt(header, 0); err != nil {
		return 0, err
	}
	if magic := byteOrder.Uint32(header[0:4]); magic != sstMagic {
		return 0, fmt.Errorf("%w: %s bad magic %#x", ErrCorruptedSSTable, sstFile(s.seq), magic)
	}
	return byteOrder.Uint32(header[4:8]), nil
}

// 读取索引文件全部内容
func (s *SSTReader) ReadIndex() ([]*Index, error) {
	buf, err := os.ReadFile(path.Join(s.conf.Dir, indexFile(s.seq)))
	if err != nil {
		return nil, err
	}

	index, err := decodeIndex(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, indexFile(s.seq))
	}
	return index, nil
}

// 读取 offset 处的一条数据记录.
// 所有长度都先与文件剩余大小比较，再分配内存，比较时只做减法，不会溢出
func (s *SSTReader) ReadRecord(offset uint64) ([]byte, memtable.Value, error) {
	if !validRecordOffset(offset, s.size) {
		return nil, memtable.Value{}, fmt.Errorf("%w: %s record offset %d out of range", ErrCorruptedSSTable, sstFile(s.seq), offset)
	}
	// offset 之后至少还有 minRecordSize 个 byte
	remain := s.size - offset - minRecordSize

	lenBuf := make([]byte, 4)
	if err := s.readAt(lenBuf, offset); err != nil {
		return nil, memtable.Value{}, err
	}
	keyLen := uint64(byteOrder.Uint32(lenBuf))
	if keyLen > remain {
		return nil, memtable.Value{}, fmt.Errorf("%w: %s key length %d at %d overflows file", ErrCorruptedSSTable, sstFile(s.seq), keyLen, offset)
	}
	remain -= keyLen

	// key 与 value 长度一次读出
	buf := make([]byte, keyLen+4)
	if err := s.readAt(buf, offset+4); err != nil {
		return nil, memtable.Value{}, err
	}
	key := buf[:keyLen]

	valueLen := int32(byteOrder.Uint32(buf[keyLen:]))
	if valueLen == tombstoneLen {
		return key, memtable.Deleted(), nil
	}
	if valueLen < 0 || uint64(valueLen) > remain {
		return nil, memtable.Value{}, fmt.Errorf("%w: %s bad value length %d at %d", ErrCorruptedSSTable, sstFile(s.seq), valueLen, offset)
	}

	value := make([]byte, valueLen)
	if err := s.readAt(value, offset+8+keyLen); err != nil {
		return nil, memtable.Value{}, err
	}
	return key, memtable.Present(value), nil
}

func (s *SSTReader) Close() error {
	return s.src.Close()
}

// offset 处能否容纳一条最短的数据记录
func validRecordOffset(offset, size uint64) bool {
	return offset >= sstHeaderSize && offset <= size && size-offset >= minRecordSize
}

// 定位读满 buf. 读到文件末尾视为文件损坏
func (s *SSTReader) readAt(buf []byte, offset uint64) error {
	if len(buf) == 0 {
		return nil
	}
	if offset > math.MaxInt64 {
		return fmt.Errorf("%w: %s offset %d out of range", ErrCorruptedSSTable, sstFile(s.seq), offset)
	}
	_, err := s.src.ReadAt(buf, int64(offset))
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s truncated at %d", ErrCorruptedSSTable, sstFile(s.seq), offset)
	}
	return err
}
