package charts

import (
	"bytes"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var palette = []color.RGBA{
	{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	{R: 0x3b, G: 0x52, B: 0x8b, A: 0xff},
	{R: 0x21, G: 0x90, B: 0x8d, A: 0xff},
	{R: 0x5d, G: 0xc8, B: 0x63, A: 0xff},
	{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
}

type panel struct {
	title  string
	yLabel string
	labels []string
	values []float64
}

// boxPlotPNG draws one box per item, items in name order.
func boxPlotPNG(title string, counts map[string]map[string]int, width, height int) ([]byte, error) {
	items := make([]string, 0, len(counts))
	for item := range counts {
		items = append(items, item)
	}
	sort.Strings(items)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Item"
	p.Y.Label.Text = "Orders per Month"
	p.Add(plotter.NewGrid())

	for i, item := range items {
		months := make([]string, 0, len(counts[item]))
		for month := range counts[item] {
			months = append(months, month)
		}
		sort.Strings(months)

		values := make(plotter.Values, len(months))
		for j, month := range months {
			values[j] = float64(counts[item][month])
		}

		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), values)
		if err != nil {
			return nil, err
		}
		box.FillColor = palette[i%len(palette)]
		p.Add(box)
	}
	p.NominalX(items...)

	wt, err := p.WriterTo(vg.Length(width)*vg.Inch/96, vg.Length(height)*vg.Inch/96, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func barPlot(pn panel, fill color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pn.title
	p.X.Label.Text = "Month"
	p.Y.Label.Text = pn.yLabel
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(plotter.Values(pn.values), vg.Points(18))
	if err != nil {
		return nil, err
	}
	bars.Color = fill
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(pn.labels...)
	return p, nil
}

// sideBySidePNG draws left and right as two aligned panels on one canvas.
func sideBySidePNG(left, right panel, width, height int) ([]byte, error) {
	lp, err := barPlot(left, palette[1])
	if err != nil {
		return nil, err
	}
	rp, err := barPlot(right, palette[2])
	if err != nil {
		return nil, err
	}

	img := vgimg.New(vg.Length(width)*vg.Inch/96, vg.Length(height)*vg.Inch/96)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 4,
		PadBottom: vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 4,
		PadRight:  vg.Millimeter * 4,
	}

	canvases := plot.Align([][]*plot.Plot{{lp, rp}}, tiles, dc)
	lp.Draw(canvases[0][0])
	rp.Draw(canvases[0][1])

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
