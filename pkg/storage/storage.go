package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID       string // 文件标识，相对于存储根的斜杠分隔路径
	Name     string // 文件名
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型
	Path     string // 内部存储路径(实现相关)
}

// Storage 文档来源存储接口
// 本地目录和MinIO桶都以同样的方式被遍历和读取
type Storage interface {
	// List 递归列出所有文件，按ID排序
	List() ([]FileInfo, error)

	// Get 获取文件内容
	Get(id string) (io.ReadCloser, error)

	// Exists 检查文件是否存在
	Exists(id string) (bool, error)

	// Save 以给定的相对路径保存文件
	Save(reader io.Reader, name string) (FileInfo, error)
}

// cleanID 规范化文件ID，拒绝越出存储根的路径
func cleanID(id string) (string, error) {
	id = filepath.ToSlash(filepath.Clean(filepath.FromSlash(id)))
	id = strings.TrimPrefix(id, "/")
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, "../") {
		return "", errors.New("invalid file id: " + id)
	}
	return id, nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
