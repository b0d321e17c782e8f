package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SplitPathList 把用户输入的路径列表（逗号或换行分隔）拆成单独的路径
func SplitPathList(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	paths := make([]string, 0, len(fields))
	for _, f := range fields {
		if p := strings.TrimSpace(f); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// FileEntry 待上传的文件：磁盘路径和上传时使用的名称
type FileEntry struct {
	Path string
	// Name 使用 / 分隔。目录中的文件保留相对所选目录上级的路径，
	// 例如选择 docs 时为 docs/a/README.md
	Name string
}

// ExpandPaths 把文件和目录展开为文件列表。
// 目录会被递归遍历（和浏览器的文件夹选择一样包含全部文件），
// 结果按路径去重并保持稳定顺序。两个不同文件的上传名称相同时返回错误。
func ExpandPaths(paths []string) ([]FileEntry, error) {
	seen := make(map[string]bool)
	names := make(map[string]string)
	var files []FileEntry

	add := func(path, name string) error {
		if seen[path] {
			return nil
		}
		if other, ok := names[name]; ok {
			return fmt.Errorf("上传名称重复: %s (%s 和 %s)", name, other, path)
		}
		seen[path] = true
		names[name] = path
		files = append(files, FileEntry{Path: path, Name: name})
		return nil
	}

	for _, p := range paths {
		p = filepath.Clean(expandHome(p))
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("读取路径失败: %w", err)
		}

		if !info.IsDir() {
			if err := add(p, filepath.Base(p)); err != nil {
				return nil, err
			}
			continue
		}

		var dirFiles []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				dirFiles = append(dirFiles, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("遍历目录失败: %w", err)
		}

		sort.Strings(dirFiles)
		base := filepath.Dir(p)
		for _, f := range dirFiles {
			rel, err := filepath.Rel(base, f)
			if err != nil {
				rel = filepath.Base(f)
			}
			if err := add(f, filepath.ToSlash(rel)); err != nil {
				return nil, err
			}
		}
	}

	return files, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~"))
}
