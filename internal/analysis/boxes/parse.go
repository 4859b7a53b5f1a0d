package boxes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

const fenceOpen = "```json"

// ExtractJSON returns the body of the first ```json fenced block, or text unchanged
// when no fence line is present.
func ExtractJSON(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != fenceOpen {
			continue
		}
		body := strings.Join(lines[i+1:], "\n")
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return body
	}
	return text
}

// Parse decodes the boxes embedded in a model reply. Objects that match no known
// shape come back with Kind Unknown rather than failing the whole reply.
func Parse(text string) ([]BoundingBox, error) {
	payload := bytes.TrimSpace([]byte(ExtractJSON(text)))

	var items []any
	if len(payload) > 0 && payload[0] == '{' {
		var single map[string]any
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, failure.New(failure.KindParse, "parse boxes", err)
		}
		items = []any{single}
	} else if err := json.Unmarshal(payload, &items); err != nil {
		return nil, failure.New(failure.KindParse, "parse boxes", err)
	}

	out := make([]BoundingBox, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, BoundingBox{Kind: Unknown, Raw: map[string]any{"value": item}})
			continue
		}
		out = append(out, classify(obj))
	}
	return out, nil
}

func classify(obj map[string]any) BoundingBox {
	box := BoundingBox{Kind: Unknown, Label: label(obj), Raw: obj}

	for _, key := range []string{"box_2d", "bounding_box"} {
		if raw, ok := obj[key]; ok {
			if coords, ok := quad(raw); ok {
				box.Kind = Normalized1000
				box.Coords = coords
			}
			return box
		}
	}

	if coords, ok := fields(obj, "x1", "y1", "x2", "y2"); ok {
		box.Kind = PixelAbsolute
		box.Coords = coords
		return box
	}

	if coords, ok := fields(obj, "x", "y", "width", "height"); ok {
		box.Kind = XYWH
		box.Coords = coords
	}
	return box
}

func label(obj map[string]any) string {
	switch v := obj["label"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func quad(raw any) ([4]float64, bool) {
	var out [4]float64
	list, ok := raw.([]any)
	if !ok || len(list) != 4 {
		return out, false
	}
	for i, v := range list {
		f, ok := v.(float64)
		if !ok {
			return out, false
		}
		out[i] = f
	}
	return out, true
}

func fields(obj map[string]any, keys ...string) ([4]float64, bool) {
	var out [4]float64
	for i, key := range keys {
		f, ok := obj[key].(float64)
		if !ok {
			return out, false
		}
		out[i] = f
	}
	return out, true
}
