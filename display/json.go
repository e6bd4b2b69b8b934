package display

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON marshals a value with stable, human-readable formatting.
// Pipeline artifacts (results.json etc.) have their own writers; this is for
// CLI output only.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals and prints JSON using display.MarshalJSON
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
