package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON value that may arrive as a number or as a numeric
// string, truncating any fractional part. The live feed is known to mix
// `"lat": "5"` and `"lat": 5` across entries.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("flexint: %w", err)
		}
		s = strings.TrimSpace(unquoted)
	}
	if i, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(i)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexint: %q is not numeric", s)
	}
	*f = FlexInt(int(v))
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(f))), nil
}

func (f FlexInt) Int() int { return int(f) }
