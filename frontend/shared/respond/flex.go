package respond

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt accepts a JSON number or a numeric string, as browser forms send both.
// Null is set when the key was present with an explicit null.
type FlexInt struct {
	Value int64
	Set   bool
	Null  bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		f.Null = true
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			f.Null = true
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("a valid integer is required")
	}
	f.Value, f.Set = v, true
	return nil
}

// FlexBool accepts true/false, "true"/"false", "1"/"0" and "on".
type FlexBool struct {
	Value bool
	Set   bool
}

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		f.Value, f.Set = true, true
	case "false", "0", "off", "no", "":
		f.Value, f.Set = false, true
	default:
		return fmt.Errorf("must be a valid boolean")
	}
	return nil
}
