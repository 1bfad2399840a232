package invoker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath is returned for handler references that are rejected
	// before touching the filesystem
	ErrInvalidPath = errors.New("invalid handler path")
	// ErrMissingScript is returned when the handler file does not exist
	ErrMissingScript = errors.New("handler script not found")
)

// Handler is a resolved, runnable handler reference
type Handler struct {
	// Path is the absolute path of the handler file
	Path string
	// Runtime is the program that runs it (python3, sh, ...)
	Runtime string
}

// CheckPath validates a handler reference without touching the filesystem.
// It rejects any ".." segment, absolute paths not covered by the allow list,
// and extensions with no configured runtime. Errors wrap ErrInvalidPath.
func (iv *Invoker) CheckPath(script string) error {
	_, err := iv.check(script)
	return err
}

// Resolve validates script and locates it on disk. Errors wrap either
// ErrInvalidPath or ErrMissingScript.
func (iv *Invoker) Resolve(script string) (Handler, error) {
	h, err := iv.check(script)
	if err != nil {
		return Handler{}, err
	}

	info, err := os.Stat(h.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Handler{}, fmt.Errorf("%w: %s", ErrMissingScript, h.Path)
		}
		return Handler{}, fmt.Errorf("%w: %s: %v", ErrMissingScript, h.Path, err)
	}
	if info.IsDir() {
		return Handler{}, fmt.Errorf("%w: %s is a directory", ErrMissingScript, h.Path)
	}
	return h, nil
}

func (iv *Invoker) check(script string) (Handler, error) {
	if strings.TrimSpace(script) == "" {
		return Handler{}, fmt.Errorf("%w: no script configured", ErrMissingScript)
	}
	if hasTraversal(script) {
		return Handler{}, fmt.Errorf("%w: %q contains a parent directory reference", ErrInvalidPath, script)
	}

	var path string
	if isAbsolute(script) {
		path = filepath.Clean(script)
		if !iv.absoluteAllowed(path) {
			return Handler{}, fmt.Errorf("%w: absolute path %q is not allow-listed", ErrInvalidPath, script)
		}
	} else {
		path = filepath.Join(iv.baseDir, filepath.FromSlash(script))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	runtime, ok := iv.runtimes[ext]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q has no runtime for extension %q", ErrInvalidPath, script, ext)
	}

	return Handler{Path: path, Runtime: runtime}, nil
}

// hasTraversal reports whether script contains "../" anywhere (either
// separator) or ends in a ".." component
func hasTraversal(script string) bool {
	s := strings.ReplaceAll(script, `\`, "/")
	return strings.Contains(s, "../") || s == ".." || strings.HasSuffix(s, "/..")
}

// isAbsolute treats rooted paths as absolute on every platform, so a
// reference like "/etc/x.sh" is checked the same way on Windows
func isAbsolute(script string) bool {
	return filepath.IsAbs(script) || strings.HasPrefix(script, "/") || strings.HasPrefix(script, `\`)
}

// absoluteAllowed reports whether path equals an allow-list entry or lies
// inside an allow-listed directory
func (iv *Invoker) absoluteAllowed(path string) bool {
	for _, allowed := range iv.allowed {
		if path == allowed {
			return true
		}
		rel, err := filepath.Rel(allowed, path)
		if err != nil {
			continue
		}
		if rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
			return true
		}
	}
	return false
}
