package match

import (
	"encoding/json"
	"fmt"
	"strings"
)

// resolution is one entry of the service's JSON response.
type resolution struct {
	Name       string  `json:"name"`
	Image      string  `json:"image"`
	Confidence float64 `json:"confidence"`
}

// parseResponse extracts the JSON list from a completion. Models like
// to wrap their output in markdown fences or prose, so the outermost
// [...] is cut out before unmarshalling.
func parseResponse(response string) ([]resolution, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	response = response[start : end+1]

	var resolutions []resolution
	if err := json.Unmarshal([]byte(response), &resolutions); err != nil {
		return nil, fmt.Errorf("failed to parse resolution JSON: %w", err)
	}
	return resolutions, nil
}

// isSentinel reports whether the returned image value is one of the
// service's not-found spellings. Compared once here, nowhere else.
func isSentinel(image string) bool {
	v := strings.ToLower(strings.TrimSpace(image))
	v = strings.TrimSuffix(v, ".png")
	switch v {
	case "", "n/a", "na", "unknown", "not_found", "not-found", "none":
		return true
	}
	return false
}

// normalizeKey strips a file extension the service may have echoed
// back; catalog keys never carry one.
func normalizeKey(image string) string {
	image = strings.TrimSpace(image)
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if strings.HasSuffix(strings.ToLower(image), ext) {
			return image[:len(image)-len(ext)]
		}
	}
	return image
}
