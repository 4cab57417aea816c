package awakencsv

import (
	"fmt"
	"strings"
	"time"
)

// Filename builds the export file name expected by the importer workflow:
// awakenfetch_{chain}_{first 8 address chars}_{YYYYMMDD}[_perps].csv.
func Filename(chainID, address string, now time.Time, perps bool) string {
	prefix := address
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	suffix := ""
	if perps {
		suffix = "_perps"
	}
	return fmt.Sprintf("awakenfetch_%s_%s_%s%s.csv",
		strings.ToLower(chainID), prefix, now.UTC().Format("20060102"), suffix)
}
