package signature

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// FlattenResult 去透明结果
// Flattened为false时Image是原图，Err说明原因；调用方可以继续使用原图
type FlattenResult struct {
	Image     image.Image
	Flattened bool
	Err       error
}

// Decode 解码PNG
func Decode(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

// Encode 编码为PNG
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrImageEncode, err)
	}
	return buf.Bytes(), nil
}

// Flatten 把图片按1:1合成到同尺寸的不透明画布上
// 画布无法分配（空尺寸、超过maxPixels、分配时panic）时返回原图
func Flatten(img image.Image, bg color.Color, maxPixels int) (res FlattenResult) {
	res = FlattenResult{Image: img}

	b := img.Bounds()
	if b.Empty() {
		res.Err = fmt.Errorf("flatten: empty bounds %v", b)
		return res
	}
	if maxPixels > 0 && b.Dx()*b.Dy() > maxPixels {
		res.Err = fmt.Errorf("flatten: %dx%d exceeds %d pixels", b.Dx(), b.Dy(), maxPixels)
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = FlattenResult{Image: img, Err: fmt.Errorf("flatten: %v", r)}
		}
	}()

	canvas := image.NewNRGBA(b)
	draw.Draw(canvas, b, image.NewUniform(opaque(bg)), image.Point{}, draw.Src)
	draw.Draw(canvas, b, img, b.Min, draw.Over)

	return FlattenResult{Image: canvas, Flattened: true}
}

// opaque 去掉背景色的透明度
func opaque(c color.Color) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return n
}

// ParseHexColor 解析#rrggbb或#rgb格式的颜色
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
