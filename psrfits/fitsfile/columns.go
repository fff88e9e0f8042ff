package fitsfile

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/scottransom/psrfits-utils/psrfits"
)

// SUBINT binary-table column names.
const (
	colTSubint = "TSUBINT"
	colOffsSub = "OFFS_SUB"
	colLST     = "LST_SUB"
	colRA      = "RA_SUB"
	colDec     = "DEC_SUB"
	colGLon    = "GLON_SUB"
	colGLat    = "GLAT_SUB"
	colFeedAng = "FD_ANG"
	colPosAng  = "POS_ANG"
	colParAng  = "PAR_ANG"
	colTelAz   = "TEL_AZ"
	colTelZen  = "TEL_ZEN"
	colFreq    = "DAT_FREQ"
	colWts     = "DAT_WTS"
	colOffs    = "DAT_OFFS"
	colScl     = "DAT_SCL"
	colData    = "DATA"
)

var scalarColumns = []string{
	colTSubint, colOffsSub, colLST, colRA, colDec, colGLon, colGLat,
	colFeedAng, colPosAng, colParAng, colTelAz, colTelZen,
}

func scalarFields(r *psrfits.Row) map[string]*float64 {
	return map[string]*float64{
		colTSubint: &r.TSubint,
		colOffsSub: &r.Offset,
		colLST:     &r.LST,
		colRA:      &r.RA,
		colDec:     &r.Dec,
		colGLon:    &r.GLon,
		colGLat:    &r.GLat,
		colFeedAng: &r.FeedAng,
		colPosAng:  &r.PosAng,
		colParAng:  &r.ParAng,
		colTelAz:   &r.TelAz,
		colTelZen:  &r.TelZen,
	}
}

// subintColumns returns the SUBINT column definitions for h.
func subintColumns(h psrfits.Header) []fitsio.Column {
	cols := make([]fitsio.Column, 0, len(scalarColumns)+5)
	for _, name := range scalarColumns {
		unit := "deg"
		switch name {
		case colTSubint, colOffsSub, colLST:
			unit = "s"
		}
		cols = append(cols, fitsio.Column{Name: name, Format: "1D", Unit: unit})
	}
	nchan := h.NChan
	width := h.Width()
	cols = append(cols,
		fitsio.Column{Name: colFreq, Format: fmt.Sprintf("%dE", nchan), Unit: "MHz"},
		fitsio.Column{Name: colWts, Format: fmt.Sprintf("%dE", nchan)},
		fitsio.Column{Name: colOffs, Format: fmt.Sprintf("%dE", width)},
		fitsio.Column{Name: colScl, Format: fmt.Sprintf("%dE", width)},
		fitsio.Column{Name: colData, Format: fmt.Sprintf("%dB", h.BytesPerRow()), Unit: "Jy"},
	)
	return cols
}

// fixedValue returns a value of the Go type fitsio uses for a column with the
// given repeat count: a scalar for 1, an array otherwise.
func fixedValue(elem reflect.Type, n int) reflect.Value {
	if n == 1 {
		return reflect.New(elem).Elem()
	}
	return reflect.New(reflect.ArrayOf(n, elem)).Elem()
}

// float32Value returns a pointer to an n-element value holding a prefix of
// src. Table.Write needs an addressable array for vector columns.
func float32Value(src []float32, n int) any {
	v := fixedValue(reflect.TypeOf(float32(0)), n)
	if n == 1 {
		if len(src) > 0 {
			v.SetFloat(float64(src[0]))
		}
		return v.Addr().Interface()
	}
	for i := 0; i < min(n, len(src)); i++ {
		v.Index(i).SetFloat(float64(src[i]))
	}
	return v.Addr().Interface()
}

func bytesValue(src []byte, n int) any {
	v := fixedValue(reflect.TypeOf(uint8(0)), n)
	if n == 1 {
		if len(src) > 0 {
			v.SetUint(uint64(src[0]))
		}
		return v.Addr().Interface()
	}
	reflect.Copy(v, reflect.ValueOf(src))
	return v.Addr().Interface()
}

// encodeRow returns the values of one row in subintColumns order.
func encodeRow(h psrfits.Header, r *psrfits.Row) []any {
	fields := scalarFields(r)
	args := make([]any, 0, len(scalarColumns)+5)
	for _, name := range scalarColumns {
		v := *fields[name]
		args = append(args, &v)
	}
	return append(args,
		float32Value(r.Freqs, h.NChan),
		float32Value(r.Weights, h.NChan),
		float32Value(r.Offsets, h.Width()),
		float32Value(r.Scales, h.Width()),
		bytesValue(r.Data, h.BytesPerRow()),
	)
}

// decodeRow copies a scanned column map into r. Nil destination slices are
// skipped and short ones receive a prefix, matching psrfits.CopyRow.
func decodeRow(m map[string]any, r *psrfits.Row) {
	for name, p := range scalarFields(r) {
		if v, ok := m[name]; ok {
			*p = toFloat64(reflect.ValueOf(v))
		}
	}
	fillFloat32(r.Freqs, m[colFreq])
	fillFloat32(r.Weights, m[colWts])
	fillFloat32(r.Offsets, m[colOffs])
	fillFloat32(r.Scales, m[colScl])
	fillBytes(r.Data, m[colData])
}

func toFloat64(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Array, reflect.Slice:
		if v.Len() > 0 {
			return toFloat64(v.Index(0))
		}
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			return toFloat64(v.Elem())
		}
	}
	return 0
}

func fillFloat32(dst []float32, src any) {
	if dst == nil || src == nil {
		return
	}
	v := reflect.ValueOf(src)
	if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
		if len(dst) > 0 {
			dst[0] = float32(toFloat64(v))
		}
		return
	}
	n := min(len(dst), v.Len())
	for i := 0; i < n; i++ {
		dst[i] = float32(toFloat64(v.Index(i)))
	}
}

func fillBytes(dst []byte, src any) {
	if dst == nil || src == nil {
		return
	}
	v := reflect.ValueOf(src)
	if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
		if len(dst) > 0 {
			dst[0] = byte(toFloat64(v))
		}
		return
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		reflect.Copy(reflect.ValueOf(dst), v)
		return
	}
	n := min(len(dst), v.Len())
	for i := 0; i < n; i++ {
		dst[i] = byte(int64(toFloat64(v.Index(i))))
	}
}

// Header card helpers. PSRFITS writers are inconsistent about numeric
// keywords, so strings are parsed too.

func cardFloat(h *fitsio.Header, key string) float64 {
	c := h.Get(key)
	if c == nil {
		return 0
	}
	if s, ok := c.Value.(string); ok {
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f
	}
	return toFloat64(reflect.ValueOf(c.Value))
}

func cardInt(h *fitsio.Header, key string) int {
	return int(cardFloat(h, key))
}

func cardString(h *fitsio.Header, key string) string {
	c := h.Get(key)
	if c == nil {
		return ""
	}
	if s, ok := c.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(c.Value)
}
