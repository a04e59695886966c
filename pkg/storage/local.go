package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalStorage 本地目录存储实现
type LocalStorage struct {
	basePath string // 根目录
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 根目录路径
}

// NewLocalStorage 创建本地存储实例
// 不检查目录是否存在，缺失的目录在 List 时以错误形式暴露
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// BasePath 返回根目录
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// List 递归列出根目录下的所有文件
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		files = append(files, FileInfo{
			ID:       filepath.ToSlash(relPath),
			Name:     d.Name(),
			Size:     info.Size(),
			MimeType: getMimeType(d.Name()),
			Path:     path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ID < files[j].ID
	})
	return files, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	path, err := s.resolve(id)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Save 保存文件到根目录下的相对路径
func (s *LocalStorage) Save(reader io.Reader, name string) (FileInfo, error) {
	id, err := cleanID(name)
	if err != nil {
		return FileInfo{}, err
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(id))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filepath.Base(path),
		Size:     size,
		MimeType: getMimeType(path),
		Path:     path,
	}, nil
}

func (s *LocalStorage) resolve(id string) (string, error) {
	clean, err := cleanID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}
