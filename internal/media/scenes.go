package media

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// parseSceneCuts extracts pts_time values from ffmpeg showinfo output.
// The scene-change filter logs one showinfo line per frame that passed
// the threshold; the frame timestamp is the cut point.
func parseSceneCuts(r io.Reader) ([]float64, error) {
	var cuts []float64

	scanner := bufio.NewScanner(r)
	// showinfo lines can get long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		idx := strings.Index(line, "pts_time:")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("pts_time:"):]
		if end := strings.IndexAny(rest, " \t"); end >= 0 {
			rest = rest[:end]
		}
		t, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			continue
		}
		cuts = append(cuts, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Float64s(cuts)
	return cuts, nil
}

// buildSpans turns cut points into scene spans covering [0, durationS).
// Spans shorter than minLenS are merged forward into the next span; a
// trailing short span is merged backward. The result always has at
// least one span and tiles the duration without gaps or overlap.
func buildSpans(cuts []float64, durationS, minLenS float64) []Span {
	if durationS <= 0 {
		return []Span{{StartS: 0, EndS: 0}}
	}

	bounds := []float64{0}
	for _, c := range cuts {
		if c <= bounds[len(bounds)-1] || c >= durationS {
			continue
		}
		bounds = append(bounds, c)
	}
	bounds = append(bounds, durationS)

	var spans []Span
	start := bounds[0]
	for i := 1; i < len(bounds); i++ {
		end := bounds[i]
		if end-start < minLenS && i < len(bounds)-1 {
			// Too short: merge forward by keeping start and extending
			// to the next boundary.
			continue
		}
		spans = append(spans, Span{StartS: start, EndS: end})
		start = end
	}

	// The trailing span may still be short; fold it into its predecessor.
	if n := len(spans); n >= 2 && spans[n-1].EndS-spans[n-1].StartS < minLenS {
		spans[n-2].EndS = spans[n-1].EndS
		spans = spans[:n-1]
	}

	if len(spans) == 0 {
		spans = []Span{{StartS: 0, EndS: durationS}}
	}
	return spans
}
