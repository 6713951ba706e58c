package lsmkv

import (
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/xiaoxuxiansheng/lsmkv/filter"
	"github.com/xiaoxuxiansheng/lsmkv/memtable"
)

// 存储引擎配置项聚合
type Config struct {
	Dir     string // sstable 文件存放的目录
	WALFile string // 预写日志文件路径，默认为 Dir/wal/wal.log

	MemTableLimit int // memtable 中 kv 对数量上限，达到上限后溢写为 sstable. 默认 1000
	MaxSSTables   int // sstable 数量超过该值时触发 compact. 默认 3

	DeleteAttempts int           // compact 后删除旧 sstable 文件的最大尝试次数. 默认 3
	DeleteBackoff  time.Duration // 删除重试的间隔. 默认 100ms

	BloomBitsPerKey     int                          // 布隆过滤器每个 key 占用的 bit 数. 默认 10
	Filter              filter.Filter                // 过滤器. 默认使用布隆过滤器
	MemTableConstructor memtable.MemTableConstructor // memtable 构造器，默认为跳表

	Logger *zap.Logger // 日志. 默认不输出
}

// 配置文件构造器.
func NewConfig(dir string, opts ...ConfigOption) (*Config, error) {
	c := Config{
		Dir: dir,
	}

	// 加载配置项
	for _, opt := range opts {
		opt(&c)
	}

	// 兜底修复
	repaire(&c)

	return &c, c.check() // 校验 sstable 目录以及 wal 文件所在目录，缺失时进行创建
}

func (c *Config) check() error {
	if err := os.MkdirAll(c.Dir, os.ModePerm); err != nil {
		return err
	}
	return os.MkdirAll(path.Dir(c.WALFile), os.ModePerm)
}

// 配置项
type ConfigOption func(*Config)

// 预写日志文件路径. 默认为 Dir/wal/wal.log
func WithWALFile(file string) ConfigOption {
	return func(c *Config) {
		c.WALFile = file
	}
}

// memtable 中 kv 对数量上限. 默认为 1000
func WithMemTableLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.MemTableLimit = limit
	}
}

// sstable 数量超过该阈值时，将全部 sstable 合并为一个. 默认为 3
func WithMaxSSTables(maxSSTables int) ConfigOption {
	return func(c *Config) {
		c.MaxSSTables = maxSSTables
	}
}

// compact 后删除旧 sstable 文件的重试策略. 默认尝试 3 次，间隔 100ms
func WithDeleteRetry(attempts int, backoff time.Duration) ConfigOption {
	return func(c *Config) {
		c.DeleteAttempts = attempts
		c.DeleteBackoff = backoff
	}
}

// 布隆过滤器每个 key 占用的 bit 数. 默认为 10
func WithBloomBitsPerKey(bitsPerKey int) ConfigOption {
	return func(c *Config) {
		c.BloomBitsPerKey = bitsPerKey
	}
}

// 注入过滤器的具体实现. 默认使用本项目下实现的布隆过滤器 bloom filter.
func WithFilter(filter filter.Filter) ConfigOption {
	return func(c *Config) {
		c.Filter = filter
	}
}

// 注入有序表构造器. 默认使用本项目下实现的跳表 skiplist.
func WithMemtableConstructor(memtableConstructor memtable.MemTableConstructor) ConfigOption {
	return func(c *Config) {
		c.MemTableConstructor = memtableConstructor
	}
}

func WithLogger(logger *zap.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func repaire(c *Config) {
	if c.WALFile == "" {
		c.WALFile = path.Join(c.Dir, "wal", "wal.log")
	}

	if c.MemTableLimit <= 0 {
		c.MemTableLimit = 1000
	}

	if c.MaxSSTables <= 0 {
		c.MaxSSTables = 3
	}

	if c.DeleteAttempts <= 0 {
		c.DeleteAttempts = 3
	}

	if c.DeleteBackoff <= 0 {
		c.DeleteBackoff = 100 * time.Millisecond
	}

	if c.BloomBitsPerKey <= 0 {
		c.BloomBitsPerKey = 10
	}

	if c.Filter == nil {
		c.Filter, _ = filter.NewBloomFilter(c.BloomBitsPerKey)
	}

	if c.MemTableConstructor == nil {
		c.MemTableConstructor = memtable.NewSkiplist
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
