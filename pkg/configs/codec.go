package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultMaxDimensionPx = 1200       // 默认压缩后最长边像素
	DefaultQuality        = 0.7        // 默认 JPEG 质量（0.0-1.0）
	DefaultPixelCeiling   = 16_777_216 // 解码像素总量上限（16M 像素）
)

// CodecConfig 照片压缩编码配置.
type CodecConfig struct {
	MaxDimensionPx int     `mapstructure:"max_dimension_px" rule:"min=16,max=16384"`
	Quality        float64 `mapstructure:"quality"          rule:"gt=0,lte=1"`
	PixelCeiling   int     `mapstructure:"pixel_ceiling"    rule:"min=65536"`
}

// JPEGQuality 将 0.0-1.0 的质量换算为 JPEG 编码器的 1-100 档位.
func (c *CodecConfig) JPEGQuality() int {
	q := int(c.Quality * 100)
	if q < 1 {
		q = 1
	}

	if q > 100 {
		q = 100
	}

	return q
}

// setDefaults 设置编解码配置的默认值.
func (c *CodecConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("codec.max_dimension_px", DefaultMaxDimensionPx)
	v.SetDefault("codec.quality", DefaultQuality)
	v.SetDefault("codec.pixel_ceiling", DefaultPixelCeiling)
}
