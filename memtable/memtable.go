package memtable

// memtable 构造器
type MemTableConstructor func() MemTable

// 有序表 interface
type MemTable interface {
	Put(key []byte, value Value)  // 写入数据，key 已存在时覆盖
	Get(key []byte) (Value, bool) // 读取原始数据，包括删除标记. 第二个 bool flag 标识 key 是否写入过
	All() []*KV                   // 按 key 升序返回所有的 kv 对数据
	Size() int                    // 有序表内数据大小，单位 byte
	EntriesCnt() int              // kv 对数量，删除标记也计入
}

// 一笔数据的值. 要么是真实的数据，要么是删除标记（tombstone），二者通过 Tombstone 字段区分，
// 任何字节序列都不会被误认为删除标记
type Value struct {
	Data      []byte // 真实数据. Tombstone 为 true 时无意义
	Tombstone bool   // 是否为删除标记
}

// 构造一个真实的值. nil 会被规整为空值
func Present(data []byte) Value {
	if data == nil {
		data = []byte{}
	}
	return Value{Data: data}
}

// 构造一个删除标记
func Deleted() Value {
	return Value{Tombstone: true}
}

// 值占用的字节数，删除标记记为 0
func (v Value) Len() int {
	if v.Tombstone {
		return 0
	}
	return len(v.Data)
}

type KV struct {
	Key   []byte
	Value Value
}
