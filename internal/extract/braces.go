package extract

// Limits for the brace scanner. Candidates past either bound are dropped.
const (
	MaxObjectDepth = 64
	MaxObjectSize  = 1 << 20 // 1 MiB
)

// ScanObjects finds balanced top-level {...} substrings in script source.
// It skips braces inside string literals and comments but is not a parser:
// candidates may still fail to decode and callers must treat that as normal.
func ScanObjects(src string) []string {
	var (
		objects  []string
		depth    int
		start    = -1
		overflow bool
		quote    byte
	)

	for i := 0; i < len(src); i++ {
		c := src[i]

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(src) {
				switch src[i+1] {
				case '/':
					for i < len(src) && src[i] != '\n' {
						i++
					}
				case '*':
					end := indexFrom(src, "*/", i+2)
					if end < 0 {
						i = len(src)
					} else {
						i = end + 1
					}
				}
			}
		case '{':
			if depth == 0 {
				start = i
				overflow = false
			}
			depth++
			if depth > MaxObjectDepth {
				overflow = true
			}
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if !overflow && i+1-start <= MaxObjectSize {
					objects = append(objects, src[start:i+1])
				}
				start = -1
			}
		}
	}

	return objects
}

func indexFrom(s, substr string, from int) int {
	if from >= len(s) {
		return -1
	}
	for i := from; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
