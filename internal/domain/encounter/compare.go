package encounter

import "time"

func compareNullAsEarliest(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return -1
	case b.IsZero():
		return 1
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
