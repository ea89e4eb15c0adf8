// Package codec 提供照片压缩和旧版内联编码的编解码工具.
// 压缩走 EXIF 自动旋转的解码器，失败时退回标准库解码（支持 webp），
// 输出统一为 JPEG；尺寸按长边等比缩小，绝不放大.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // 注册 webp 给回退解码器
)

// ErrDecode 两个解码器都无法解出图像时返回；调用方不得用原图兜底.
var ErrDecode = errors.New("codec: image decode failed")

// DefaultPixelCeiling 解码后允许的像素总量上限，超出先按 √ 比例预缩.
// 移动设备整图解码的内存安全线（约 16M 像素，4096x4096）.
const DefaultPixelCeiling = 16_777_216

// Dimensions 压缩结果的像素尺寸.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Compress 按默认像素上限压缩照片，见 CompressLimit.
func Compress(data []byte, maxDimensionPx int, quality float64) ([]byte, Dimensions, error) {
	return CompressLimit(data, maxDimensionPx, quality, DefaultPixelCeiling)
}

// CompressLimit 解码、定向、缩放并重编码照片为 JPEG.
// 长边不超过 maxDimensionPx，等比缩小，原图更小则保持尺寸；
// quality 取 0.0-1.0，映射为 JPEG 的 1-100 档位.
// 字节输出不保证稳定（编码器细节），但输出尺寸是确定的.
func CompressLimit(data []byte, maxDimensionPx int, quality float64, pixelCeiling int) ([]byte, Dimensions, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, Dimensions{}, err
	}

	// 超过像素上限的先整体预缩，避免 Fit 前持有超大位图
	bounds := img.Bounds()

	w, h := bounds.Dx(), bounds.Dy()
	if pixelCeiling > 0 && w*h > pixelCeiling {
		scale := math.Sqrt(float64(pixelCeiling) / float64(w*h))

		nw := int(float64(w) * scale)
		if nw < 1 {
			nw = 1
		}

		nh := int(float64(h) * scale)
		if nh < 1 {
			nh = 1
		}

		img = imaging.Resize(img, nw, nh, imaging.Lanczos)
	}

	fitted := imaging.Fit(img, maxDimensionPx, maxDimensionPx, imaging.Lanczos)

	q := int(quality * 100)
	if q < 1 {
		q = 1
	}

	if q > 100 {
		q = 100
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, Dimensions{}, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	fb := fitted.Bounds()

	return buf.Bytes(), Dimensions{Width: fb.Dx(), Height: fb.Dy()}, nil
}

// decodeImage 先用带 EXIF 旋转的解码器，失败再用标准库（webp 等备选格式）.
func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	img, _, fallbackErr := image.Decode(bytes.NewReader(data))
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return img, nil
}
