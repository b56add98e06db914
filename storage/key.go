package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// 客户端文件名没有可用扩展名时按 MIME 类型兜底
var audioExtByMime = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/ogg":    ".ogg",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/aac":    ".aac",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/webm":   ".webm",
}

// NewStorageKey generates a collision-resistant key of the form
// <unix-millis>-<12 hex><.ext>. Only the extension of originalName is used.
func NewStorageKey(originalName, mimeType string) string {
	return buildStorageKey(time.Now(), uuid.New(), originalName, mimeType)
}

func buildStorageKey(now time.Time, id uuid.UUID, originalName, mimeType string) string {
	suffix := strings.ReplaceAll(id.String(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, keyExtension(originalName, mimeType))
}

func keyExtension(originalName, mimeType string) string {
	// 兼容 Windows 风格路径，只看最后一段
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext := strings.ToLower(path.Ext(base))
	if safeExt.MatchString(ext) {
		return ext
	}
	return audioExtByMime[strings.ToLower(mimeType)]
}
