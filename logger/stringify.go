package logger

import "fmt"

func stringify(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case error:
		return vv.Error()
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprintf("%v", vv)
	}
}
