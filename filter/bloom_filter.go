package filter

import (
	"errors"

	"github.com/spaolacci/murmur3"
)

// bitmap 最少 64 bit，避免 key 很少时误判率过高
const minBitmapBits = 64

// 布隆过滤器. bitmap 长度按照 key 的个数动态计算，每个 key 分配 bitsPerKey 个 bit
type BloomFilter struct {
	bitsPerKey int      // 每个 key 占用的 bit 数
	hashedKeys []uint32 // 已添加 key 的 murmur3 哈希值
}

func NewBloomFilter(bitsPerKey int) (*BloomFilter, error) {
	if bitsPerKey <= 0 {
		return nil, errors.New("bits per key must be positive")
	}
	return &BloomFilter{
		bitsPerKey: bitsPerKey,
	}, nil
}

func (bf *BloomFilter) Add(key []byte) {
	bf.hashedKeys = append(bf.hashedKeys, murmur3.Sum32(key))
}

// 判断 bitmap 中是否可能存在 key. 返回 false 时 key 一定不存在
func (bf *BloomFilter) Exist(bitmap, key []byte) bool {
	if len(bitmap) < 2 {
		return true
	}

	k := bitmap[len(bitmap)-1]
	bits := uint32(len(bitmap)-1) << 3
	h, delta := probe(murmur3.Sum32(key))
	for i := uint8(0); i < k; i++ {
		bit := h % bits
		if bitmap[bit>>3]&(1<<(bit&7)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// 生成 bitmap. 最后一个 byte 存放哈希函数个数 k
func (bf *BloomFilter) Hash() []byte {
	bits := len(bf.hashedKeys) * bf.bitsPerKey
	if bits < minBitmapBits {
		bits = minBitmapBits
	}
	bytesLen := (bits + 7) >> 3
	bits = bytesLen << 3

	k := bf.bestK()
	bitmap := make([]byte, bytesLen+1)
	bitmap[bytesLen] = k

	for _, hashedKey := range bf.hashedKeys {
		h, delta := probe(hashedKey)
		for i := uint8(0); i < k; i++ {
			bit := h % uint32(bits)
			bitmap[bit>>3] |= 1 << (bit & 7)
			h += delta
		}
	}
	return bitmap
}

func (bf *BloomFilter) Reset() {
	bf.hashedKeys = bf.hashedKeys[:0]
}

func (bf *BloomFilter) KeyLen() int {
	return len(bf.hashedKeys)
}

// k = ln2 * bitsPerKey，限制在 [1,30]
func (bf *BloomFilter) bestK() uint8 {
	k := bf.bitsPerKey * 69 / 100
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return uint8(k)
}

// 双重哈希: 第 i 个哈希函数为 h + i*delta，delta 由 h 循环移位得到
func probe(h uint32) (uint32, uint32) {
	return h, h>>17 | h<<15
}
