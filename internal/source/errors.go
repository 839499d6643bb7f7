// 包 source：按 URL 拉取静态资源（清单、几何、表格），统一错误分类与多级缓存
package source

import (
	"errors"
	"fmt"
)

// Kind：加载错误所属的资源类别
type Kind string

const (
	KindManifest Kind = "manifest"
	KindGeometry Kind = "geometry"
	KindTable    Kind = "table"
)

// ErrNotFound：资源不存在（HTTP 404 或本地文件缺失）
var ErrNotFound = errors.New("source: not found")

// StatusError：上游返回非 2xx
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s: unexpected status %d", e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// 文档注释：资源加载错误
// 背景：清单失败对启动是致命的；几何与表格失败只影响单个图层，由调用方按 Kind 决定降级方式。
type LoadError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s load %s: %v", e.Kind, e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Wrap：为错误附加资源类别；已是同类 LoadError 时原样返回
func Wrap(kind Kind, url string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) && le.Kind == kind {
		return err
	}
	return &LoadError{Kind: kind, URL: url, Err: err}
}

// IsKind：判断错误链中是否包含指定类别的 LoadError
func IsKind(err error, kind Kind) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == kind
}
