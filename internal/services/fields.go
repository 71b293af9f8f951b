package services

import (
	"fmt"
	"strconv"
	"strings"
)

// Helpers for coercing loosely-shaped model output fields. The model is asked
// for a fixed JSON shape but routinely returns strings where numbers were
// expected, nested objects for market figures, and dicts instead of plain
// name lists.

func stripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	return strings.TrimSpace(response)
}

func toString(value any, fallback string) string {
	switch v := value.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return fallback
}

func toInt(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func toStringSlice(value any, fallback []string) []string {
	items, ok := value.([]any)
	if !ok {
		return fallback
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		default:
			if name := extractName(item); name != "" {
				result = append(result, name)
			}
		}
	}

	if len(result) == 0 {
		return fallback
	}
	return result
}

// extractName pulls a display string from a dict-shaped list item, trying the
// keys the model tends to use.
func extractName(item any) string {
	dict, ok := item.(map[string]any)
	if !ok {
		if item == nil {
			return ""
		}
		return fmt.Sprintf("%v", item)
	}

	for _, key := range []string{"name", "company", "competitor", "trend", "title", "value"} {
		if raw, exists := dict[key]; exists {
			if str, ok := raw.(string); ok && str != "" {
				return str
			}
		}
	}
	return ""
}

// extractMarketValue flattens a TAM/SAM/SOM field that may be a plain string,
// a {"value": ...} object, or a map of market segments.
func extractMarketValue(value any, fallback string) string {
	switch v := value.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		if inner, exists := v["value"]; exists {
			return extractMarketValue(inner, fallback)
		}
		for _, inner := range v {
			return extractMarketValue(inner, fallback)
		}
	}
	return fallback
}

func truncateForLog(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
