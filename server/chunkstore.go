package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	placedDirName = "placed_blocks"
	tripleSize    = 12 // 3 × int32
)

var (
	// ErrStorageIO 目录/文件创建、读写失败
	ErrStorageIO = errors.New("storage io error")
	// ErrDecode 持久化数据损坏或无法解析
	ErrDecode = errors.New("decode error")
)

// ChunkStore 按区块把放置坐标落盘：
// <root>/placed_blocks/<world-name>/chunk_<x>_<z>.dat
// 文件内容为若干 (x,y,z) 大端 int32 三元组，无头、无版本、无校验
type ChunkStore struct {
	root string
}

// NewChunkStore root 为服务器存档根目录
func NewChunkStore(root string) *ChunkStore {
	return &ChunkStore{root: root}
}

// Root 存档根目录
func (s *ChunkStore) Root() string { return s.root }

// Path 计算区块文件路径
func (s *ChunkStore) Path(world WorldID, chunk ChunkPos) (string, error) {
	name := world.Path()
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: invalid world name %q", ErrStorageIO, world)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: invalid world name %q", ErrStorageIO, world)
		}
	}
	file := fmt.Sprintf("chunk_%d_%d.dat", chunk.X, chunk.Z)
	return filepath.Join(s.root, placedDirName, filepath.FromSlash(name), file), nil
}

// Write 写入区块集合；先写临时文件再改名，保证单个区块要么完整落盘要么不变
func (s *ChunkStore) Write(world WorldID, chunk ChunkPos, set PosSet) error {
	path, err := s.Path(world, chunk)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrStorageIO, err)
	}

	buf := encodeTriples(set)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create: %v", ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrStorageIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrStorageIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrStorageIO, path, err)
	}
	return nil
}

// Read 读取区块集合；文件不存在时返回空集合而非错误
func (s *ChunkStore) Read(world WorldID, chunk ChunkPos) (PosSet, error) {
	path, err := s.Path(world, chunk)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return PosSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	set, err := decodeTriples(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	for p := range set {
		if !chunk.Contains(p) {
			return nil, fmt.Errorf("%w: %s: position %v outside chunk %v", ErrDecode, path, p, chunk)
		}
	}
	return set, nil
}

// Remove 删除区块文件；文件不存在不算错误
func (s *ChunkStore) Remove(world WorldID, chunk ChunkPos) error {
	path, err := s.Path(world, chunk)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrStorageIO, path, err)
	}
	return nil
}

func encodeTriples(set PosSet) []byte {
	buf := make([]byte, 0, len(set)*tripleSize)
	for p := range set {
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.X))
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.Y))
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.Z))
	}
	return buf
}

func decodeTriples(b []byte) (PosSet, error) {
	if len(b)%tripleSize != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of %d", len(b), tripleSize)
	}
	set := make(PosSet, len(b)/tripleSize)
	for off := 0; off < len(b); off += tripleSize {
		set.Add(BlockPos{
			X: int32(binary.BigEndian.Uint32(b[off:])),
			Y: int32(binary.BigEndian.Uint32(b[off+4:])),
			Z: int32(binary.BigEndian.Uint32(b[off+8:])),
		})
	}
	return set, nil
}
