package lsmkv

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

const (
	sstMagic         = 0x4A4B565F // "JKV_"
	sstHeaderSize    = 8          // magic (4 byte) + 条目数 (4 byte)
	tombstoneLen     = -1         // 数据文件中删除标记对应的 value 长度
	blockFlushSize   = 16 * 1024  // 块缓冲区超过该大小后写入文件
	indexOffsetWidth = 8          // 索引文件中 offset 的宽度
	minRecordSize    = 8          // 最短的数据记录: key 长度 (4 byte) + value 长度 (4 byte)
)

// 所有整数均为大端序
var byteOrder = binary.BigEndian

// 记录缓冲区. 数据文件与索引文件各使用一个，按照写入顺序追加编码后的记录
type Block struct {
	buffer     [8]byte       // 临时缓冲区
	record     *bytes.Buffer // 记录缓冲区
	entriesCnt int           // 记录数量
}

func NewBlock() *Block {
	return &Block{
		record: bytes.NewBuffer([]byte{}),
	}
}

// 追加一条数据记录: [keyLen][key][valueLen 或 -1][value]. 返回记录的大小
func (b *Block) AppendData(key []byte, value memtable.Value) int {
	start := b.record.Len()

	byteOrder.PutUint32(b.buffer[:4], uint32(len(key)))
	b.record.Write(b.buffer[:4])
	b.record.Write(key)

	valueLen := int32(tombstoneLen)
	if !value.Tombstone {
		valueLen = int32(len(value.Data))
	}
	byteOrder.PutUint32(b.buffer[:4], uint32(valueLen))
	b.record.Write(b.buffer[:4])
	if !value.Tombstone {
		b.record.Write(value.Data)
	}

	b.entriesCnt++
	return b.record.Len() - start
}

// 追加一条索引记录: [keyLen][key][offset]
func (b *Block) AppendIndex(key []byte, offset uint64) {
	byteOrder.PutUint32(b.buffer[:4], uint32(len(key)))
	b.record.Write(b.buffer[:4])
	b.record.Write(key)
	byteOrder.PutUint64(b.buffer[:indexOffsetWidth], offset)
	b.record.Write(b.buffer[:indexOffsetWidth])
	b.entriesCnt++
}

func (b *Block) Size() int {
	return b.record.Len()
}

// 把块中的数据溢写到 writer 中
func (b *Block) FlushTo(dest io.Writer) (uint64, error) {
	defer b.clear()
	n, err := dest.Write(b.ToBytes())
	return uint64(n), err
}

func (b *Block) ToBytes() []byte {
	return b.record.Bytes()
}

func (b *Block) clear() {
	b.entriesCnt = 0
	b.record.Reset()
}

// 编码数据文件头: [magic][count]
func encodeHeader(count uint32) []byte {
	header := make([]byte, sstHeaderSize)
	byteOrder.PutUint32(header[0:4], sstMagic)
	byteOrder.PutUint32(header[4:8], count)
	return header
}

// 解析索引文件
func decodeIndex(buf []byte) ([]*Index, error) {
	var index []*Index
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, ErrCorruptedSSTable
		}
		keyLen := int(byteOrder.Uint32(buf))
		buf = buf[4:]
		if keyLen > len(buf) || len(buf)-keyLen < indexOffsetWidth {
			return nil, ErrCorruptedSSTable
		}

		key := append([]byte{}, buf[:keyLen]...)
		offset := byteOrder.Uint64(buf[keyLen:])
		buf = buf[keyLen+indexOffsetWidth:]

		// 索引必须严格按 key 升序
		if len(index) > 0 && bytes.Compare(index[len(index)-1].Key, key) >= 0 {
			return nil, ErrCorruptedSSTable
		}
		index = append(index, &Index{Key: key, Offset: offset})
	}
	return index, nil
}
