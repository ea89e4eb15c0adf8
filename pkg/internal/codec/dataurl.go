package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEncoding 内联 data URL 结构不合法时返回.
var ErrMalformedEncoding = errors.New("codec: malformed data url")

// dataURLPrefix 迁移扫描识别内联照片的前缀.
const dataURLPrefix = "data:image"

// IsDataURL 判断字符串是否为内联图片编码.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// EncodeDataURL 把二进制编码为 base64 内联 data URL.
func EncodeDataURL(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL 解开内联 data URL，返回原始二进制和 MIME 类型.
// 与 EncodeDataURL 互为逆操作，往返无损.
func DecodeDataURL(s string) ([]byte, string, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, "", fmt.Errorf("%w: missing data scheme", ErrMalformedEncoding)
	}

	rest := s[len("data:"):]

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("%w: missing comma separator", ErrMalformedEncoding)
	}

	meta := rest[:comma]
	payload := rest[comma+1:]

	mime := meta

	base64enc := false
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		mime = meta[:i]
		base64enc = strings.Contains(meta[i:], "base64")
	}

	// 旧版应用只产出 base64 形态，其余一律视为结构损坏
	if !base64enc {
		return nil, "", fmt.Errorf("%w: payload is not base64", ErrMalformedEncoding)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}

	return data, mime, nil
}
