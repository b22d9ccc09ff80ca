// Package chart renders candle series into PNG artifacts for one-time delivery.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"MarketPulse/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Body colours. Close == open counts as bullish.
var (
	BullishColor color.Color = color.RGBA{R: 0x26, G: 0xa6, B: 0x9a, A: 0xff}
	BearishColor color.Color = color.RGBA{R: 0xef, G: 0x53, B: 0x50, A: 0xff}
)

// ErrNoCandles is returned when Render is called with an empty series.
var ErrNoCandles = errors.New("chart: no candles to render")

// Renderer draws candlestick charts into uniquely named files under Dir.
type Renderer struct {
	Dir       string
	Width     vg.Length
	Height    vg.Length
	HalfWidth time.Duration
	Location  *time.Location
}

// NewRenderer creates an 8x4 inch renderer writing into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{
		Dir:       dir,
		Width:     8 * vg.Inch,
		Height:    4 * vg.Inch,
		HalfWidth: time.Minute,
		Location:  time.Local,
	}
}

// bar is one candle in plot coordinates: X in unix seconds, the rest in price.
type bar struct {
	X        float64
	Low      float64
	High     float64
	BodyLow  float64
	BodyHigh float64
	Color    color.Color
}

func bodyColor(c model.Candle) color.Color {
	if c.Bullish() {
		return BullishColor
	}
	return BearishColor
}

func buildBars(candles []model.Candle) ([]bar, error) {
	bars := make([]bar, len(candles))
	for i, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("candle %d at %s: non-finite price", i, c.Time.Format(time.RFC3339))
			}
		}
		if c.Low > c.High {
			return nil, fmt.Errorf("candle %d at %s: low %.2f above high %.2f", i, c.Time.Format(time.RFC3339), c.Low, c.High)
		}
		bars[i] = bar{
			X:        float64(c.Time.Unix()),
			Low:      c.Low,
			High:     c.High,
			BodyLow:  c.BodyLow(),
			BodyHigh: c.BodyHigh(),
			Color:    bodyColor(c),
		}
	}
	return bars, nil
}

// candlesticks implements plot.Plotter and plot.DataRanger.
type candlesticks struct {
	bars      []bar
	halfWidth float64
	lineWidth vg.Length
}

func (cs candlesticks) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, b := range cs.bars {
		sty := draw.LineStyle{Color: b.Color, Width: cs.lineWidth}
		x := trX(b.X)
		c.StrokeLine2(sty, x, trY(b.Low), x, trY(b.High))

		left, right := trX(b.X-cs.halfWidth), trX(b.X+cs.halfWidth)
		lo, hi := trY(b.BodyLow), trY(b.BodyHigh)
		if hi-lo < cs.lineWidth {
			c.StrokeLine2(sty, left, lo, right, lo)
			continue
		}
		c.FillPolygon(b.Color, []vg.Point{
			{X: left, Y: lo},
			{X: right, Y: lo},
			{X: right, Y: hi},
			{X: left, Y: hi},
		})
	}
}

func (cs candlesticks) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, b := range cs.bars {
		xmin = math.Min(xmin, b.X-cs.halfWidth)
		xmax = math.Max(xmax, b.X+cs.halfWidth)
		ymin = math.Min(ymin, b.Low)
		ymax = math.Max(ymax, b.High)
	}
	return xmin, xmax, ymin, ymax
}

// Render draws candles (oldest first) and returns the path of a new PNG file.
// The caller owns the file.
func (r *Renderer) Render(candles []model.Candle, label string) (string, error) {
	if len(candles) == 0 {
		return "", ErrNoCandles
	}
	bars, err := buildBars(candles)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", label, err)
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Candlestick Chart", label)
	p.Y.Label.Text = "Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04", Time: plot.UnixTimeIn(loc)}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Add(plotter.NewGrid(), candlesticks{
		bars:      bars,
		halfWidth: r.HalfWidth.Seconds(),
		lineWidth: vg.Points(1),
	})

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return "", fmt.Errorf("render %s: %w", label, err)
	}

	f, err := os.CreateTemp(r.Dir, "chart-*.png")
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write chart: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close chart: %w", err)
	}
	return f.Name(), nil
}
