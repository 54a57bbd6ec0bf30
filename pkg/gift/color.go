package gift

import "fmt"

// HexColor converts a 24-bit integer color to a #rrggbb string. A zero or
// absent value renders as #000000; only the low 24 bits are significant.
func HexColor(v uint32) string {
	return fmt.Sprintf("#%06x", v&0xffffff)
}
