package utils

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const maxFilenameRunes = 120

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_\-. ]+`)
	multipleSpaces      = regexp.MustCompile(`\s+`)
)

// SafeFilename turns an arbitrary title into a name that is safe for file
// systems and for a quoted Content-Disposition value. It returns fallback when
// nothing usable is left.
func SafeFilename(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	value = unsafeFilenameChars.ReplaceAllString(value, "_")
	value = strings.TrimSpace(value)
	value = multipleSpaces.ReplaceAllString(value, " ")

	if runes := []rune(value); len(runes) > maxFilenameRunes {
		value = string(runes[:maxFilenameRunes])
	}
	if value == "" {
		return fallback
	}
	return value
}

// WriteFile 将 reader 的内容写入新文件，返回写入的字节数
func WriteFile(path string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("保存文件失败: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("保存文件失败: %w", err)
	}
	return n, nil
}

// CopyFile 复制文件内容
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	return WriteFile(dst, in)
}
