package tile

import (
	"path/filepath"
	"strconv"
)

// Path returns the canonical location of a tile beneath root:
// root/zoom/x/y.ext. The dispatcher's resume check and the worker's
// final write both go through this function; the z/x/y nesting makes
// the mapping injective, so no two tiles ever share a file.
func Path(root string, c Coordinate, f Format) string {
	return filepath.Join(root,
		strconv.Itoa(c.Zoom),
		strconv.Itoa(c.X),
		strconv.Itoa(c.Y)+"."+f.Ext())
}
