package filter

// 过滤器. sstable 加载时由全部 key 生成 bitmap，点查时用于快速排除一定不存在的 key.
// 实现可以有误判，但不能漏判
type Filter interface {
	Add(key []byte)
	Exist(bitmap, key []byte) bool // bitmap 中是否可能存在 key
	Hash() []byte                  // 由已添加的 key 生成 bitmap
	Reset()
	KeyLen() int // 已添加的 key 数量
}

// 由一组 key 生成 bitmap，完成后重置过滤器，使其可以被下一个 sstable 复用
func Build(f Filter, keys [][]byte) []byte {
	defer f.Reset()
	for _, key := range keys {
		f.Add(key)
	}
	return f.Hash()
}
