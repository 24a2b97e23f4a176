// time.go - Dauer-Formatierung fuer Fortschritts- und Zusammenfassungsausgaben
package format

import (
	"fmt"
	"time"
)

// HumanDuration formatiert eine Dauer kompakt (us, ms, s, m)
func HumanDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fus", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
