package lsmkv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	sstSuffix   = ".sst"
	indexSuffix = ".idx"
)

// 读取 sst 文件，还原出全部节点. 只在启动时调用
func (m *SSTManager) load() error {
	sstEntries, err := m.getSortedSSTEntries()
	if err != nil {
		return err
	}

	for _, sstEntry := range sstEntries {
		seq, _ := getSeqFromSSTFile(sstEntry.Name())
		// 即便文件无法加载，序号也不能被复用
		if seq > m.seq {
			m.seq = seq
		}

		node, err := OpenNode(m.conf, seq)
		if err != nil {
			if errors.Is(err, ErrCorruptedSSTable) || errors.Is(err, os.ErrNotExist) {
				m.logger.Warn("skip unreadable sstable", zap.String("file", sstEntry.Name()), zap.Error(err))
				continue
			}
			return fmt.Errorf("load %s: %w", sstEntry.Name(), err)
		}
		m.nodes = append(m.nodes, node)
	}

	m.logger.Debug("sstables loaded", zap.Int("tables", len(m.nodes)), zap.Int32("seq", m.seq))
	return nil
}

// 列出目录下的 sst 文件，按序号升序排列
func (m *SSTManager) getSortedSSTEntries() ([]fs.DirEntry, error) {
	allEntries, err := os.ReadDir(m.conf.Dir)
	if err != nil {
		return nil, err
	}

	sstEntries := make([]fs.DirEntry, 0, len(allEntries))
	for _, entry := range allEntries {
		if entry.IsDir() {
			continue
		}

		if _, ok := getSeqFromSSTFile(entry.Name()); !ok {
			continue
		}

		sstEntries = append(sstEntries, entry)
	}

	sort.Slice(sstEntries, func(i, j int) bool {
		seqI, _ := getSeqFromSSTFile(sstEntries[i].Name())
		seqJ, _ := getSeqFromSSTFile(sstEntries[j].Name())
		return seqI < seqJ
	})
	return sstEntries, nil
}

func getSeqFromSSTFile(file string) (int32, bool) {
	if !strings.HasSuffix(file, sstSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimSuffix(file, sstSuffix), 10, 32)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return int32(seq), true
}

func sstFile(seq int32) string {
	return fmt.Sprintf("%06d%s", seq, sstSuffix)
}

func indexFile(seq int32) string {
	return fmt.Sprintf("%06d%s", seq, indexSuffix)
}

func sstPath(conf *Config, seq int32) string {
	return path.Join(conf.Dir, sstFile(seq))
}
