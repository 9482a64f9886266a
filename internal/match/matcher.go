package match

import (
	"sort"
	"time"

	"drivesync/internal/media"
)

// Classification is the cross-store state of one pair.
type Classification string

const (
	// ClassMatched pairs are confidently the same media; no action.
	ClassMatched Classification = "matched"
	// ClassDriveOnly items have no counterpart in Photos.
	ClassDriveOnly Classification = "drive_only"
	// ClassPhotosOnly items have no counterpart in Drive.
	ClassPhotosOnly Classification = "photos_only"
	// ClassAmbiguous pairs share a name but their created times are too far
	// apart to match confidently; a decision is required.
	ClassAmbiguous Classification = "ambiguous"
)

// Pair relates one Drive-side item to one Photos-side item. One side is nil
// for the one-sided classifications.
type Pair struct {
	Drive        *media.Item
	Photos       *media.Item
	Class        Classification
	TimeDistance time.Duration
}

// Result buckets every inventory item into exactly one pair.
type Result struct {
	Matched    []Pair
	DriveOnly  []Pair
	PhotosOnly []Pair
	Ambiguous  []Pair
}

// Pairs returns every pair across all classifications.
func (r Result) Pairs() []Pair {
	pairs := make([]Pair, 0, len(r.Matched)+len(r.DriveOnly)+len(r.PhotosOnly)+len(r.Ambiguous))
	pairs = append(pairs, r.Matched...)
	pairs = append(pairs, r.DriveOnly...)
	pairs = append(pairs, r.PhotosOnly...)
	pairs = append(pairs, r.Ambiguous...)
	return pairs
}

type candidate struct {
	driveIdx  int
	photosIdx int
	distance  time.Duration
}

// Match classifies the two inventories. Items are grouped by normalized
// name; within a group, cross-store pairs are consumed greedily in
// ascending time-distance order, first inside the match window (matched)
// and then beyond it (ambiguous). Ties at equal distance are broken by a
// side-agnostic ordering so the classification never depends on listing
// order or on which store is passed first.
func Match(driveItems, photosItems []media.Item) Result {
	type group struct {
		drive  []media.Item
		photos []media.Item
	}
	groups := make(map[string]*group)
	grab := func(name string) *group {
		g, ok := groups[name]
		if !ok {
			g = &group{}
			groups[name] = g
		}
		return g
	}
	for _, item := range driveItems {
		g := grab(media.NormalizeName(item.Name))
		g.drive = append(g.drive, item)
	}
	for _, item := range photosItems {
		g := grab(media.NormalizeName(item.Name))
		g.photos = append(g.photos, item)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var result Result
	for _, name := range names {
		g := groups[name]
		matchGroup(g.drive, g.photos, &result)
	}
	return result
}

// matchGroup classifies one same-name group. Process order within the group
// is fixed by sortCandidates, never by input order.
func matchGroup(drive, photos []media.Item, result *Result) {
	candidates := make([]candidate, 0, len(drive)*len(photos))
	for di := range drive {
		for pi := range photos {
			candidates = append(candidates, candidate{
				driveIdx:  di,
				photosIdx: pi,
				distance:  absDuration(drive[di].CreatedAt.Sub(photos[pi].CreatedAt)),
			})
		}
	}
	sortCandidates(candidates, drive, photos)

	usedDrive := make([]bool, len(drive))
	usedPhotos := make([]bool, len(photos))
	consume := func(class Classification, within bool) {
		for _, c := range candidates {
			if usedDrive[c.driveIdx] || usedPhotos[c.photosIdx] {
				continue
			}
			if within != (c.distance <= media.MatchWindow) {
				continue
			}
			usedDrive[c.driveIdx] = true
			usedPhotos[c.photosIdx] = true
			pair := Pair{
				Drive:        &drive[c.driveIdx],
				Photos:       &photos[c.photosIdx],
				Class:        class,
				TimeDistance: c.distance,
			}
			if class == ClassMatched {
				result.Matched = append(result.Matched, pair)
			} else {
				result.Ambiguous = append(result.Ambiguous, pair)
			}
		}
	}
	consume(ClassMatched, true)
	consume(ClassAmbiguous, false)

	for di := range drive {
		if !usedDrive[di] {
			result.DriveOnly = append(result.DriveOnly, Pair{Drive: &drive[di], Class: ClassDriveOnly})
		}
	}
	for pi := range photos {
		if !usedPhotos[pi] {
			result.PhotosOnly = append(result.PhotosOnly, Pair{Photos: &photos[pi], Class: ClassPhotosOnly})
		}
	}
}

// sortCandidates fixes the greedy consumption order: ascending time
// distance, then a symmetric comparison of the two items' created times and
// IDs. Symmetric means the order is unchanged when the stores swap sides.
func sortCandidates(candidates []candidate, drive, photos []media.Item) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		aLo, aHi := orderedTimes(drive[a.driveIdx].CreatedAt, photos[a.photosIdx].CreatedAt)
		bLo, bHi := orderedTimes(drive[b.driveIdx].CreatedAt, photos[b.photosIdx].CreatedAt)
		if !aLo.Equal(bLo) {
			return aLo.Before(bLo)
		}
		if !aHi.Equal(bHi) {
			return aHi.Before(bHi)
		}
		aMin, aMax := orderedStrings(drive[a.driveIdx].ID, photos[a.photosIdx].ID)
		bMin, bMax := orderedStrings(drive[b.driveIdx].ID, photos[b.photosIdx].ID)
		if aMin != bMin {
			return aMin < bMin
		}
		return aMax < bMax
	})
}

func orderedTimes(a, b time.Time) (time.Time, time.Time) {
	if b.Before(a) {
		return b, a
	}
	return a, b
}

func orderedStrings(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
