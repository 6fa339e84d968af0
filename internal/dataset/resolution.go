package dataset

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	minRandomHeight = 320
	maxRandomHeight = 1024
	minRandomWidth  = 320
)

// Resolution - размер запрашиваемого изображения.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ResolutionPolicy выбирает разрешение для очередного изображения.
type ResolutionPolicy interface {
	Next() Resolution
}

// FixedResolution всегда возвращает одно и то же разрешение.
type FixedResolution Resolution

func (f FixedResolution) Next() Resolution {
	return Resolution(f)
}

// RandomResolution: высота равномерно из [320, 1024], ширина равномерно
// из [0.8*h, 1.2*h] (с округлением вниз) и не меньше 320.
// Получаются почти квадратные изображения без вырожденно маленьких сторон.
type RandomResolution struct {
	rng *rand.Rand
}

func NewRandomResolution(rng *rand.Rand) *RandomResolution {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomResolution{rng: rng}
}

func (p *RandomResolution) Next() Resolution {
	h := minRandomHeight + p.rng.IntN(maxRandomHeight-minRandomHeight+1)
	lo, hi := h*4/5, h*6/5
	w := lo + p.rng.IntN(hi-lo+1)
	if w < minRandomWidth {
		w = minRandomWidth
	}
	return Resolution{Width: w, Height: h}
}

// ParseResolution разбирает "random" или "WxH" (например 320x320).
func ParseResolution(s string, rng *rand.Rand) (ResolutionPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "random" {
		return NewRandomResolution(rng), nil
	}

	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return nil, fmt.Errorf("%w: resolution %q is neither \"random\" nor WxH", ErrInvalidArgument, s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil || w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: invalid resolution %q", ErrInvalidArgument, s)
	}
	return FixedResolution{Width: w, Height: h}, nil
}
