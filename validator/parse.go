package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"mealplanner"
)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// Parse extracts a day plan from raw provider text. It tries the whole text,
// then a fenced code block, then everything between the first '{' and the
// last '}'.
func Parse(raw string) (mealplanner.SingleDayPlan, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return mealplanner.SingleDayPlan{}, parseError("no JSON object found in output")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return mealplanner.SingleDayPlan{}, parseError(err.Error())
	}

	rawMeals, ok := fields["meals"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawMeals), []byte("null")) {
		return mealplanner.SingleDayPlan{}, parseError(`missing "meals" array`)
	}

	var day mealplanner.SingleDayPlan
	if err := json.Unmarshal(rawMeals, &day.Meals); err != nil {
		return mealplanner.SingleDayPlan{}, parseError(fmt.Sprintf("meals: %v", err))
	}
	return day, nil
}

func parseError(detail string) error {
	return &mealplanner.ValidationError{Rule: mealplanner.ErrParse, MealIndex: -1, Detail: detail}
}

func extractObject(text string) ([]byte, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	candidates := []string{text}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if first, last := strings.Index(text, "{"), strings.LastIndex(text, "}"); first != -1 && last > first {
		candidates = append(candidates, text[first:last+1])
	}

	for _, c := range candidates {
		if obj, ok := asObject([]byte(c)); ok {
			return obj, true
		}
	}
	return nil, false
}

// asObject accepts a JSON object, or a JSON string that itself holds one.
func asObject(b []byte) ([]byte, bool) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return b, true
	case string:
		inner := []byte(strings.TrimSpace(t))
		var m map[string]any
		if err := json.Unmarshal(inner, &m); err == nil {
			return inner, true
		}
	}
	return nil, false
}
