// Package merge implements the pure, deterministic three-way resolution
// between a local and a remote AppData document. Merge never performs I/O
// and never blocks; every input it needs is already in memory.
package merge

import (
	"reflect"
	"sort"
	"time"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// SkewThreshold is the window within which two concurrent updates are
// flagged as a conflict, and the margin beyond "now" that triggers clock
// skew repair.
const SkewThreshold = 30 * time.Second

// MaxConflictIDsPerType caps how many conflict ids are recorded per entity
// collection, so a pathological merge can't grow the stats payload unbounded.
const MaxConflictIDsPerType = 20

// Status is the overall outcome of a merge.
type Status string

// Merge statuses.
const (
	StatusSuccess  Status = "success"
	StatusConflict Status = "conflict"
)

// EntityStats carries the conflict/skew bookkeeping for one entity collection.
type EntityStats struct {
	Conflicts            int      `json:"conflicts"`
	ConflictIDs          []string `json:"conflictIds,omitempty"`
	MaxClockSkewMs       int64    `json:"maxClockSkewMs"`
	TimestampAdjustments int      `json:"timestampAdjustments"`
}

// MergeStats bundles the per-collection stats for a single merge.
type MergeStats struct {
	Tasks    EntityStats `json:"tasks"`
	Projects EntityStats `json:"projects"`
	Sections EntityStats `json:"sections"`
	Areas    EntityStats `json:"areas"`
}

// TotalConflicts sums conflicts across all four collections.
func (m MergeStats) TotalConflicts() int {
	return m.Tasks.Conflicts + m.Projects.Conflicts + m.Sections.Conflicts + m.Areas.Conflicts
}

// Result is the outcome of a Merge call.
type Result struct {
	Data   *model.AppData
	Stats  MergeStats
	Status Status
}

// Options configures an optional clock injection point, mirroring the
// teacher's nowFunc pattern used for deterministic cooldown/backoff tests.
type Options struct {
	// Now returns the current instant used for clock-skew repair. Defaults
	// to time.Now when nil.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Merge resolves local against remote and returns the merged document plus
// stats. remote may be nil, meaning "no remote document yet" — in that case
// local is returned unchanged with an empty stats block. Merge never
// mutates local or remote.
func Merge(local, remote *model.AppData) (*Result, error) {
	return MergeWithOptions(local, remote, Options{})
}

// MergeWithOptions is Merge with an injectable clock, used by tests that
// need deterministic clock-skew repair.
func MergeWithOptions(local, remote *model.AppData, opts Options) (*Result, error) {
	if local == nil {
		local = model.Empty()
	}
	if remote == nil {
		return &Result{Data: local, Stats: MergeStats{}, Status: StatusSuccess}, nil
	}

	now := opts.now()

	tasks, taskStats := mergeEntities(local.Tasks, remote.Tasks, now)
	projects, projStats := mergeEntities(local.Projects, remote.Projects, now)
	sections, sectionStats := mergeEntities(local.Sections, remote.Sections, now)
	areas, areaStats := mergeEntities(local.Areas, remote.Areas, now)

	localTasksByID := indexByID(local.Tasks)
	remoteTasksByID := indexByID(remote.Tasks)
	for _, t := range tasks {
		t.Attachments = mergeAttachments(attachmentsOf(localTasksByID, t.ID), attachmentsOf(remoteTasksByID, t.ID))
	}

	localProjectsByID := indexByID(local.Projects)
	remoteProjectsByID := indexByID(remote.Projects)
	for _, p := range projects {
		p.Attachments = mergeAttachments(attachmentsOf(localProjectsByID, p.ID), attachmentsOf(remoteProjectsByID, p.ID))
	}

	merged := &model.AppData{
		Tasks:    tasks,
		Projects: projects,
		Sections: sections,
		Areas:    areas,
		Settings: mergeSettings(local.Settings, remote.Settings),
	}

	stats := MergeStats{Tasks: taskStats, Projects: projStats, Sections: sectionStats, Areas: areaStats}
	status := StatusSuccess
	if stats.TotalConflicts() > 0 {
		status = StatusConflict
	}

	return &Result{Data: merged, Stats: stats, Status: status}, nil
}

// mergeable is the minimal surface every top-level entity (Task, Project,
// Section, Area) exposes so a single generic routine can resolve all four
// collections identically. It is self-referential (T must be able to
// produce and compare another T) so the merge routine can clone a winner
// before mutating it, preserving purity with respect to its inputs.
type mergeable[T any] interface {
	GetID() string
	GetCreatedAt() int64
	GetUpdatedAt() int64
	SetUpdatedAt(int64)
	GetDeletedAt() *int64
	SetDeletedAt(*int64)
	Clone() T
}

// mergeEntities performs the per-id resolution described for tasks,
// projects, sections, and areas: presence, tombstone dominance, LWW with a
// stable tie-break, conflict detection, and clock-skew repair.
func mergeEntities[T mergeable[T]](local, remote []T, now time.Time) ([]T, EntityStats) {
	localByID := indexByID(local)
	remoteByID := indexByID(remote)

	ids := make(map[string]struct{}, len(localByID)+len(remoteByID))
	for id := range localByID {
		ids[id] = struct{}{}
	}
	for id := range remoteByID {
		ids[id] = struct{}{}
	}

	sortedIDs := make([]string, 0, len(ids))
	for id := range ids {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)

	result := make([]T, 0, len(ids))
	stats := EntityStats{}

	for _, id := range sortedIDs {
		l, hasLocal := localByID[id]
		r, hasRemote := remoteByID[id]

		var winner T
		switch {
		case hasLocal && !hasRemote:
			winner = l.Clone()
		case hasRemote && !hasLocal:
			winner = r.Clone()
		default:
			winner = resolvePair(l, r, now, &stats)
		}

		repairSkew(winner, now, &stats)
		result = append(result, winner)
	}

	if len(stats.ConflictIDs) > MaxConflictIDsPerType {
		stats.ConflictIDs = stats.ConflictIDs[:MaxConflictIDsPerType]
	}

	return result, stats
}

// resolvePair implements rule 2 and rule 3 of the per-entity resolution:
// tombstone dominance, then last-writer-wins with a stable tie-break, plus
// conflict detection between two live, differing versions. Returns a clone
// the caller may safely mutate further (e.g. clock-skew repair).
func resolvePair[T mergeable[T]](l, r T, now time.Time, stats *EntityStats) T {
	lDeleted := l.GetDeletedAt()
	rDeleted := r.GetDeletedAt()

	if lDeleted != nil || rDeleted != nil {
		return tombstoneWinner(l, r, lDeleted, rDeleted)
	}

	recordSkew(l.GetUpdatedAt(), r.GetUpdatedAt(), stats)

	if withinSkew(l.GetUpdatedAt(), r.GetUpdatedAt()) && !deepEqualIgnoringUpdatedAt(l, r) {
		stats.Conflicts++
		if len(stats.ConflictIDs) < MaxConflictIDsPerType {
			stats.ConflictIDs = append(stats.ConflictIDs, l.GetID())
		}
	}

	return lww(l, r).Clone()
}

// recordSkew updates stats.MaxClockSkewMs with |a-b| for every two-sided
// compare, per spec.md §4.1 step 4 ("across compared pairs") — independent
// of whether the pair is also flagged as a conflict.
func recordSkew(a, b int64, stats *EntityStats) {
	skew := a - b
	if skew < 0 {
		skew = -skew
	}
	skewMs := skew / int64(time.Millisecond)
	if skewMs > stats.MaxClockSkewMs {
		stats.MaxClockSkewMs = skewMs
	}
}

// tombstoneWinner returns a clone of the tombstoned side, or — if both
// sides carry a tombstone — of the side whose deletedAt is earlier, with
// the earlier deletedAt written into the clone so the merged entity
// reflects the first delete.
func tombstoneWinner[T mergeable[T]](l, r T, lDeleted, rDeleted *int64) T {
	switch {
	case lDeleted != nil && rDeleted == nil:
		return l.Clone()
	case rDeleted != nil && lDeleted == nil:
		return r.Clone()
	default:
		winner := l
		if *rDeleted < *lDeleted {
			winner = r
		}
		earliest := *lDeleted
		if *rDeleted < earliest {
			earliest = *rDeleted
		}
		c := winner.Clone()
		c.SetDeletedAt(&earliest)
		return c
	}
}

// lww picks the side with the greater updatedAt, breaking ties by createdAt
// then lexicographic id, per spec rule 2. Returns the original, uncloned
// value; callers clone before mutating.
func lww[T mergeable[T]](l, r T) T {
	if l.GetUpdatedAt() != r.GetUpdatedAt() {
		if l.GetUpdatedAt() > r.GetUpdatedAt() {
			return l
		}
		return r
	}
	if l.GetCreatedAt() != r.GetCreatedAt() {
		if l.GetCreatedAt() > r.GetCreatedAt() {
			return l
		}
		return r
	}
	if l.GetID() <= r.GetID() {
		return l
	}
	return r
}

// repairSkew clamps a winner's updatedAt to now when it exceeds
// now+SkewThreshold, recording the adjustment. winner must already be a
// value this function is free to mutate (a clone, not shared input).
func repairSkew[T mergeable[T]](winner T, now time.Time, stats *EntityStats) {
	limit := now.Add(SkewThreshold).UnixNano()
	if winner.GetUpdatedAt() > limit {
		winner.SetUpdatedAt(now.UnixNano())
		stats.TimestampAdjustments++
	}
}

// deepEqualIgnoringUpdatedAt reports whether l and r are equal in every
// observable field except updatedAt, per the conflict-detection rule.
func deepEqualIgnoringUpdatedAt[T mergeable[T]](l, r T) bool {
	lc := l.Clone()
	rc := r.Clone()
	lc.SetUpdatedAt(0)
	rc.SetUpdatedAt(0)
	return reflect.DeepEqual(lc, rc)
}

func withinSkew(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(SkewThreshold)
}

func indexByID[T mergeable[T]](items []T) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[it.GetID()] = it
	}
	return m
}
