package document

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/fyerfyer/pdf-rag/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Loader 从存储中加载文档并按页拆分
type Loader struct {
	storage    storage.Storage
	extensions map[string]struct{}
	logger     *logrus.Logger
}

// LoaderOption 加载器配置选项
type LoaderOption func(*Loader)

// WithExtensions 设置需要加载的文件扩展名
func WithExtensions(exts ...string) LoaderOption {
	return func(l *Loader) {
		l.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			l.extensions[ext] = struct{}{}
		}
	}
}

// WithLoaderLogger 设置日志记录器
func WithLoaderLogger(logger *logrus.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader 创建文档加载器，默认只加载PDF
func NewLoader(store storage.Storage, opts ...LoaderOption) *Loader {
	l := &Loader{
		storage:    store,
		extensions: map[string]struct{}{".pdf": {}},
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 加载所有匹配扩展名的文件，每个非空页面生成一个Document
// 结果按source、page排序
func (l *Loader) Load(ctx context.Context) ([]Document, error) {
	files, err := l.storage.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []Document
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := l.extensions[strings.ToLower(path.Ext(file.ID))]; !ok {
			continue
		}

		pages, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, page := range pages {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			docs = append(docs, Document{
				Source:  file.ID,
				Page:    page.Number,
				Content: page.Text,
			})
			added++
		}

		l.logger.WithFields(logrus.Fields{
			"source": file.ID,
			"pages":  len(pages),
			"kept":   added,
		}).Debug("Document loaded")
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Source != docs[j].Source {
			return docs[i].Source < docs[j].Source
		}
		return docs[i].Page < docs[j].Page
	})

	l.logger.WithField("documents", len(docs)).Info("Loaded document pages")
	return docs, nil
}

func (l *Loader) loadFile(file storage.FileInfo) ([]Page, error) {
	parser, err := ParserFactory(file.ID)
	if err != nil {
		return nil, err
	}

	rc, err := l.storage.Get(file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.ID, err)
	}
	defer rc.Close()

	pages, err := parser.ParseReader(rc, file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file.ID, err)
	}
	return pages, nil
}
