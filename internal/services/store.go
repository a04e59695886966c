package services

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fyerfyer/pdf-rag/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// ErrStoreUnavailable 向量库未能打开
var ErrStoreUnavailable = errors.New("vector store unavailable")

// StoreOpener 打开（或创建）向量库
type StoreOpener func() (vectordb.Repository, error)

// RepositoryProvider 提供当前可用的向量库
// 重置之后返回的是新打开的实例
type RepositoryProvider interface {
	Current() (vectordb.Repository, error)
}

// Store 持有可重置的向量库实例
type Store struct {
	mu     sync.RWMutex
	repo   vectordb.Repository
	open   StoreOpener
	path   string
	logger *logrus.Logger
}

// NewStore 打开向量库，path为持久化目录，为空表示没有持久化状态
func NewStore(path string, open StoreOpener, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	repo, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return &Store{repo: repo, open: open, path: path, logger: logger}, nil
}

// NewRepositoryStore 根据向量库配置创建Store
func NewRepositoryStore(cfg vectordb.Config) (*Store, error) {
	return NewStore(cfg.PersistPath(), func() (vectordb.Repository, error) {
		return vectordb.NewRepository(cfg)
	}, cfg.Logger)
}

// Repository 返回当前的向量库，上一次重新打开失败时为nil
func (s *Store) Repository() vectordb.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

// Current 返回当前的向量库
// 上一次重置后重新打开失败时，在这里再尝试打开一次
func (s *Store) Current() (vectordb.Repository, error) {
	s.mu.RLock()
	repo := s.repo
	s.mu.RUnlock()
	if repo != nil {
		return repo, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.repo, nil
	}
	repo, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Info("Reopened vector store")
	s.repo = repo
	return repo, nil
}

// Path 返回持久化目录
func (s *Store) Path() string {
	return s.path
}

// Reset 关闭向量库并删除持久化目录，然后重新打开一个空库
// 目录不存在时不做删除，多次调用与调用一次效果相同
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return fmt.Errorf("failed to close vector store: %w", err)
		}
		s.repo = nil
	}

	if s.path != "" {
		if _, err := os.Stat(s.path); err == nil {
			if err := os.RemoveAll(s.path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", s.path, err)
			}
			s.logger.WithField("path", s.path).Info("Cleared vector store")
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", s.path, err)
		}
	}

	repo, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: failed to reopen: %v", ErrStoreUnavailable, err)
	}
	s.repo = repo
	return nil
}

// Close 关闭向量库
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil
	}
	err := s.repo.Close()
	s.repo = nil
	return err
}
