// Package assets decodes image resources into RGBA8 textures.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/gekko3d/imagefall/gpu"
)

var ErrEmptyImage = errors.New("image has no pixels")

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// TextureAsset is a decoded image in RGBA8, row major, not premultiplied.
type TextureAsset struct {
	Texels []uint8
	Width  uint32
	Height uint32
	Source string
}

type decoder func(io.Reader) (image.Image, error)

// Extensions with a dedicated decoder. Anything else goes through
// image.Decode and the formats registered there.
var decoders = map[string]decoder{
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".gif":  gif.Decode,
	".bmp":  bmp.Decode,
	".tif":  tiff.Decode,
	".tiff": tiff.Decode,
	".webp": webp.Decode,
	".tga":  tga.Decode,
}

// Loader resolves resources under Root and caches what it decoded.
type Loader struct {
	Root string
	// MaxDimension downsizes images whose longer side exceeds it. Zero keeps
	// the source size.
	MaxDimension int

	textures map[AssetId]TextureAsset
	decoded  map[decodeKey]AssetId
}

// decodeKey identifies one decode: the same file at another size limit is a
// different texture.
type decodeKey struct {
	resource     string
	maxDimension int
}

func NewLoader(root string) *Loader {
	return &Loader{
		Root:     root,
		textures: make(map[AssetId]TextureAsset),
		decoded:  make(map[decodeKey]AssetId),
	}
}

func (l *Loader) path(resource string) string {
	if filepath.IsAbs(resource) || l.Root == "" {
		return resource
	}
	return filepath.Join(l.Root, resource)
}

// Decode reads and decodes resource once per MaxDimension; later calls return
// the cached id.
func (l *Loader) Decode(resource string) (AssetId, error) {
	key := decodeKey{resource: resource, maxDimension: l.MaxDimension}
	if id, ok := l.decoded[key]; ok {
		return id, nil
	}
	path := l.path(resource)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := DecodeImage(bytes.NewReader(raw), filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if l.MaxDimension > 0 {
		img = Downscale(img, l.MaxDimension)
	}
	id := l.CreateTexture(img)
	tex := l.textures[id]
	tex.Source = resource
	l.textures[id] = tex
	l.decoded[key] = id
	return id, nil
}

// CreateTexture registers an in-memory image.
func (l *Loader) CreateTexture(img *image.NRGBA) AssetId {
	id := makeAssetId()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	texels := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(texels[y*w*4:(y+1)*w*4], row[:w*4])
	}
	l.textures[id] = TextureAsset{Texels: texels, Width: uint32(w), Height: uint32(h)}
	return id
}

func (l *Loader) Texture(id AssetId) (TextureAsset, bool) {
	tex, ok := l.textures[id]
	return tex, ok
}

// LoadTexture decodes resource and uploads it to dev.
func (l *Loader) LoadTexture(dev gpu.Device, resource string) (gpu.Texture, error) {
	id, err := l.Decode(resource)
	if err != nil {
		return nil, err
	}
	tex := l.textures[id]
	return dev.CreateTexture(&gpu.TextureDescriptor{
		Label:  resource,
		Width:  tex.Width,
		Height: tex.Height,
		Pixels: tex.Texels,
	})
}

// DecodeImage decodes r with the decoder registered for ext and converts the
// result to NRGBA.
func DecodeImage(r io.Reader, ext string) (*image.NRGBA, error) {
	var img image.Image
	var err error
	if dec, ok := decoders[strings.ToLower(ext)]; ok {
		img, err = dec(r)
	} else {
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts any image to NRGBA with bounds starting at the origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha channel.
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
			}
		}
	}
	return dst
}

// Downscale shrinks img so its longer side is at most maxDim, keeping the
// aspect ratio. Smaller images are returned as is.
func Downscale(img *image.NRGBA, maxDim int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
