package detector

import (
	"cmp"
	"slices"
)

// nms keeps the highest scoring face of every overlapping group. faces is
// reordered by descending score.
func nms(faces []Face, iouThreshold float32) []Face {
	slices.SortStableFunc(faces, func(a, b Face) int {
		return cmp.Compare(b.Score, a.Score)
	})

	kept := make([]Face, 0, len(faces))
	for _, f := range faces {
		overlaps := slices.ContainsFunc(kept, func(k Face) bool {
			return iou(k.BoundingBox, f.BoundingBox) > iouThreshold
		})
		if !overlaps {
			kept = append(kept, f)
		}
	}
	return kept
}

// iou is the intersection over union of two boxes
func iou(a, b BoundingBox) float32 {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
