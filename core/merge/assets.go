package merge

import (
	"fmt"

	"github.com/diedeno/mscz-concatenator/core/mscz"
)

// CopyAssets copies the source entries under prefix that the target lacks,
// raw and unchanged, and returns how many were copied. Directory entries are
// skipped and existing target entries are never overwritten. An empty
// prefix selects pictures.
func CopyAssets(target, source *mscz.Document, prefix string) (int, error) {
	if prefix == "" {
		prefix = mscz.PicturesPrefix
	}
	if !target.IsCompressed() || !source.IsCompressed() {
		return 0, nil
	}
	copied := 0
	for _, name := range source.AssetNames(prefix) {
		if target.HasAsset(name) {
			continue
		}
		if err := target.CopyRawAsset(source, name); err != nil {
			return copied, fmt.Errorf("copying %s from %s: %w", name, source.Path(), err)
		}
		copied++
	}
	return copied, nil
}
