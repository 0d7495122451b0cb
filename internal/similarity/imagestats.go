package similarity

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// statsGridSize — сторона сетки, до которой изображение уменьшается
// перед сравнением. Все попиксельные сигналы считаются на этой сетке.
const statsGridSize = 16

// ImageStats — предрассчитанные характеристики изображения для мультисигнальной
// оценки: размеры, уменьшенная полутоновая сетка, карта границ и средние по каналам.
type ImageStats struct {
	Width        int
	Height       int
	AspectRatio  float64
	Gray         []float64  // statsGridSize^2 значений в [0, 1]
	Edges        []float64  // градиентная карта той же сетки
	ChannelMeans [3]float64 // средние R, G, B в [0, 1]
}

// PixelArea возвращает площадь изображения в пикселях.
func (s *ImageStats) PixelArea() int {
	return s.Width * s.Height
}

// ComputeImageStats декодирует изображение (jpeg, png, gif) и считает его характеристики.
func ComputeImageStats(data []byte) (*ImageStats, error) {
	if len(data) == 0 {
		return nil, e.ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap("decode image", e.Data(err.Error()))
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, e.ErrEmptyImage
	}

	stats := &ImageStats{
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Gray:        make([]float64, statsGridSize*statsGridSize),
	}

	// Уменьшение до сетки выборкой по центрам ячеек; этого достаточно
	// для сравнительных сигналов, полноценный ресемплинг не нужен.
	var sumR, sumG, sumB float64
	for gy := 0; gy < statsGridSize; gy++ {
		for gx := 0; gx < statsGridSize; gx++ {
			px := bounds.Min.X + (gx*2+1)*width/(statsGridSize*2)
			py := bounds.Min.Y + (gy*2+1)*height/(statsGridSize*2)

			r, g, b, _ := img.At(px, py).RGBA()
			fr := float64(r) / 65535.0
			fg := float64(g) / 65535.0
			fb := float64(b) / 65535.0

			sumR += fr
			sumG += fg
			sumB += fb
			stats.Gray[gy*statsGridSize+gx] = 0.299*fr + 0.587*fg + 0.114*fb
		}
	}

	cells := float64(statsGridSize * statsGridSize)
	stats.ChannelMeans = [3]float64{sumR / cells, sumG / cells, sumB / cells}
	stats.Edges = edgeMap(stats.Gray)

	return stats, nil
}

// edgeMap считает карту границ как сумму модулей центральных разностей по сетке.
func edgeMap(gray []float64) []float64 {
	edges := make([]float64, len(gray))
	for y := 0; y < statsGridSize; y++ {
		for x := 0; x < statsGridSize; x++ {
			var dx, dy float64
			if x > 0 && x < statsGridSize-1 {
				dx = gray[y*statsGridSize+x+1] - gray[y*statsGridSize+x-1]
			}
			if y > 0 && y < statsGridSize-1 {
				dy = gray[(y+1)*statsGridSize+x] - gray[(y-1)*statsGridSize+x]
			}
			edges[y*statsGridSize+x] = abs(dx) + abs(dy)
		}
	}
	return edges
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
