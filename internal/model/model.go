// Package model defines the entities exchanged between the local store,
// the merger, and the transport layer: tasks, projects, sections, areas,
// attachments, settings, and the AppData document that bundles them.
package model

import "encoding/json"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

// Task statuses, mirroring the GTD workflow stages.
const (
	TaskStatusInbox     TaskStatus = "inbox"
	TaskStatusNext      TaskStatus = "next"
	TaskStatusWaiting   TaskStatus = "waiting"
	TaskStatusSomeday   TaskStatus = "someday"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusDone      TaskStatus = "done"
	TaskStatusArchived  TaskStatus = "archived"
)

// Valid reports whether s is a recognized task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusInbox, TaskStatusNext, TaskStatusWaiting, TaskStatusSomeday,
		TaskStatusScheduled, TaskStatusDone, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// ProjectStatus is the lifecycle state of a Project.
type ProjectStatus string

// Project statuses.
const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusSomeday  ProjectStatus = "someday"
	ProjectStatusWaiting  ProjectStatus = "waiting"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Valid reports whether s is a recognized project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusSomeday, ProjectStatusWaiting, ProjectStatusArchived:
		return true
	default:
		return false
	}
}

// AttachmentKind distinguishes a locally-synced file blob from a bare link.
type AttachmentKind string

// Attachment kinds.
const (
	AttachmentKindFile AttachmentKind = "file"
	AttachmentKindLink AttachmentKind = "link"
)

// AttachmentLocalStatus reports whether the attachment's bytes are present
// on this device.
type AttachmentLocalStatus string

// Attachment local statuses.
const (
	AttachmentAvailable AttachmentLocalStatus = "available"
	AttachmentMissing   AttachmentLocalStatus = "missing"
)

// RecurrenceStrategy controls how a recurring task's next instance is scheduled.
type RecurrenceStrategy string

// Recurrence strategies.
const (
	RecurrenceFixed     RecurrenceStrategy = "fixed"
	RecurrenceAfterDone RecurrenceStrategy = "after_done"
)

// Recurrence describes a task's repeat rule.
type Recurrence struct {
	Rule     string             `json:"rule"`
	Strategy RecurrenceStrategy `json:"strategy"`
	ByDay    []string           `json:"byDay,omitempty"`
	RRule    *string            `json:"rrule,omitempty"`
}

// ChecklistItem is a single line inside a Task's checklist.
type ChecklistItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// Attachment is a binary blob or external link owned by a Task or Project.
// CloudKey, once assigned, is immutable for the lifetime of the attachment.
type Attachment struct {
	ID          string                `json:"id"`
	Kind        AttachmentKind        `json:"kind"`
	Title       string                `json:"title"`
	URI         string                `json:"uri"`
	MimeType    *string               `json:"mimeType,omitempty"`
	Size        *int64                `json:"size,omitempty"`
	FileHash    string                `json:"fileHash,omitempty"`
	CloudKey    string                `json:"cloudKey,omitempty"`
	LocalStatus AttachmentLocalStatus `json:"localStatus,omitempty"`

	CreatedAt Timestamp  `json:"createdAt"`
	UpdatedAt Timestamp  `json:"updatedAt"`
	DeletedAt *Timestamp `json:"deletedAt,omitempty"`
}

// GetID implements mergeable.
func (a Attachment) GetID() string { return a.ID }

// audit carries the fields every top-level entity shares.
type audit struct {
	ID        string     `json:"id"`
	CreatedAt Timestamp  `json:"createdAt"`
	UpdatedAt Timestamp  `json:"updatedAt"`
	DeletedAt *Timestamp `json:"deletedAt,omitempty"`
	PurgedAt  *Timestamp `json:"purgedAt,omitempty"`
}

// Task is a single actionable item.
type Task struct {
	audit

	Title          string          `json:"title"`
	Status         TaskStatus      `json:"status"`
	Priority       int             `json:"priority,omitempty"`
	ProjectID      *string         `json:"projectId,omitempty"`
	SectionID      *string         `json:"sectionId,omitempty"`
	AreaID         *string         `json:"areaId,omitempty"`
	StartTime      *Timestamp      `json:"startTime,omitempty"`
	DueDate        *Timestamp      `json:"dueDate,omitempty"`
	ReviewAt       *Timestamp      `json:"reviewAt,omitempty"`
	CompletedAt    *Timestamp      `json:"completedAt,omitempty"`
	Recurrence     *Recurrence     `json:"recurrence,omitempty"`
	PushCount      *int            `json:"pushCount,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Contexts       []string        `json:"contexts,omitempty"`
	Checklist      []ChecklistItem `json:"checklist,omitempty"`
	Attachments    []Attachment    `json:"attachments,omitempty"`
	OrderNum       *int            `json:"orderNum,omitempty"`
	IsFocusedToday bool            `json:"isFocusedToday,omitempty"`
	TextDirection  *string         `json:"textDirection,omitempty"`
	TimeEstimate   *int            `json:"timeEstimate,omitempty"`
	Description    *string         `json:"description,omitempty"`
}

// GetID implements mergeable.
func (t *Task) GetID() string { return t.ID }

// GetCreatedAt implements mergeable.
func (t *Task) GetCreatedAt() int64 { return int64(t.CreatedAt) }

// GetUpdatedAt implements mergeable.
func (t *Task) GetUpdatedAt() int64 { return int64(t.UpdatedAt) }

// SetUpdatedAt implements mergeable.
func (t *Task) SetUpdatedAt(ns int64) { t.UpdatedAt = Timestamp(ns) }

// GetDeletedAt implements mergeable.
func (t *Task) GetDeletedAt() *int64 { return timestampPtrToInt64(t.DeletedAt) }

// SetDeletedAt implements mergeable.
func (t *Task) SetDeletedAt(ns *int64) { t.DeletedAt = int64PtrToTimestamp(ns) }

// GetAttachments implements attachmentOwner.
func (t *Task) GetAttachments() []Attachment { return t.Attachments }

// SetAttachments implements attachmentOwner.
func (t *Task) SetAttachments(a []Attachment) { t.Attachments = a }

// Clone returns a deep-enough copy for merge purposes (attachments are
// re-sliced so mutating the copy's attachments never touches the original).
func (t *Task) Clone() *Task {
	c := *t
	c.Attachments = append([]Attachment(nil), t.Attachments...)
	c.Tags = append([]string(nil), t.Tags...)
	c.Contexts = append([]string(nil), t.Contexts...)
	c.Checklist = append([]ChecklistItem(nil), t.Checklist...)
	return &c
}

// Project groups related tasks and sections under a single outcome.
type Project struct {
	audit

	Title        string       `json:"title"`
	Status       ProjectStatus `json:"status"`
	Color        string       `json:"color,omitempty"`
	Order        int          `json:"order"`
	TagIDs       []string     `json:"tagIds,omitempty"`
	IsSequential bool         `json:"isSequential,omitempty"`
	IsFocused    bool         `json:"isFocused,omitempty"`
	SupportNotes *string      `json:"supportNotes,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	ReviewAt     *Timestamp   `json:"reviewAt,omitempty"`
	AreaID       *string      `json:"areaId,omitempty"`
	AreaTitle    *string      `json:"areaTitle,omitempty"`
}

// GetID implements mergeable.
func (p *Project) GetID() string { return p.ID }

// GetCreatedAt implements mergeable.
func (p *Project) GetCreatedAt() int64 { return int64(p.CreatedAt) }

// GetUpdatedAt implements mergeable.
func (p *Project) GetUpdatedAt() int64 { return int64(p.UpdatedAt) }

// SetUpdatedAt implements mergeable.
func (p *Project) SetUpdatedAt(ns int64) { p.UpdatedAt = Timestamp(ns) }

// GetDeletedAt implements mergeable.
func (p *Project) GetDeletedAt() *int64 { return timestampPtrToInt64(p.DeletedAt) }

// SetDeletedAt implements mergeable.
func (p *Project) SetDeletedAt(ns *int64) { p.DeletedAt = int64PtrToTimestamp(ns) }

// GetAttachments implements attachmentOwner.
func (p *Project) GetAttachments() []Attachment { return p.Attachments }

// SetAttachments implements attachmentOwner.
func (p *Project) SetAttachments(a []Attachment) { p.Attachments = a }

// Clone returns a deep-enough copy for merge purposes.
func (p *Project) Clone() *Project {
	c := *p
	c.Attachments = append([]Attachment(nil), p.Attachments...)
	c.TagIDs = append([]string(nil), p.TagIDs...)
	return &c
}

// Section groups tasks within a Project.
type Section struct {
	audit

	ProjectID   string  `json:"projectId"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Order       int     `json:"order"`
	IsCollapsed bool    `json:"isCollapsed,omitempty"`
}

// GetID implements mergeable.
func (s *Section) GetID() string { return s.ID }

// GetCreatedAt implements mergeable.
func (s *Section) GetCreatedAt() int64 { return int64(s.CreatedAt) }

// GetUpdatedAt implements mergeable.
func (s *Section) GetUpdatedAt() int64 { return int64(s.UpdatedAt) }

// SetUpdatedAt implements mergeable.
func (s *Section) SetUpdatedAt(ns int64) { s.UpdatedAt = Timestamp(ns) }

// GetDeletedAt implements mergeable.
func (s *Section) GetDeletedAt() *int64 { return timestampPtrToInt64(s.DeletedAt) }

// SetDeletedAt implements mergeable.
func (s *Section) SetDeletedAt(ns *int64) { s.DeletedAt = int64PtrToTimestamp(ns) }

// Clone returns a copy safe for independent mutation.
func (s *Section) Clone() *Section {
	c := *s
	return &c
}

// Area is a top-level sphere of responsibility (e.g. "Health", "Work").
type Area struct {
	audit

	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
	Order int     `json:"order"`
}

// GetID implements mergeable.
func (a *Area) GetID() string { return a.ID }

// GetCreatedAt implements mergeable.
func (a *Area) GetCreatedAt() int64 { return int64(a.CreatedAt) }

// GetUpdatedAt implements mergeable.
func (a *Area) GetUpdatedAt() int64 { return int64(a.UpdatedAt) }

// SetUpdatedAt implements mergeable.
func (a *Area) SetUpdatedAt(ns int64) { a.UpdatedAt = Timestamp(ns) }

// GetDeletedAt implements mergeable.
func (a *Area) GetDeletedAt() *int64 { return timestampPtrToInt64(a.DeletedAt) }

// SetDeletedAt implements mergeable.
func (a *Area) SetDeletedAt(ns *int64) { a.DeletedAt = int64PtrToTimestamp(ns) }

// Clone returns a copy safe for independent mutation.
func (a *Area) Clone() *Area {
	c := *a
	return &c
}

func timestampPtrToInt64(t *Timestamp) *int64 {
	if t == nil {
		return nil
	}
	v := int64(*t)
	return &v
}

func int64PtrToTimestamp(v *int64) *Timestamp {
	if v == nil {
		return nil
	}
	t := Timestamp(*v)
	return &t
}

// SyncHistoryEntry is one row of the settings.lastSyncHistory ring buffer.
type SyncHistoryEntry struct {
	At                   Timestamp `json:"at"`
	Status               string    `json:"status"`
	Conflicts            int       `json:"conflicts"`
	ConflictIDs          []string  `json:"conflictIds,omitempty"`
	MaxClockSkewMs       int64     `json:"maxClockSkewMs"`
	TimestampAdjustments int       `json:"timestampAdjustments"`
	Error                *string   `json:"error,omitempty"`
}

// MaxSyncHistory bounds the lastSyncHistory ring buffer (spec.md §3).
const MaxSyncHistory = 10

// AttachmentsSettings holds GC bookkeeping for the attachment engine.
type AttachmentsSettings struct {
	LastCleanupAt          Timestamp `json:"lastCleanupAt,omitempty"`
	TombstoneRetentionDays int       `json:"tombstoneRetentionDays,omitempty"`
}

// Settings is the free-form key/value settings document with a handful of
// reserved, structurally-known sub-objects.
type Settings struct {
	AI                map[string]any      `json:"ai,omitempty"`
	GTD               map[string]any      `json:"gtd,omitempty"`
	Features          map[string]any      `json:"features,omitempty"`
	Diagnostics       map[string]any      `json:"diagnostics,omitempty"`
	Attachments       AttachmentsSettings `json:"attachments,omitempty"`
	ExternalCalendars []map[string]any    `json:"externalCalendars,omitempty"`

	LastSyncAt      *Timestamp         `json:"lastSyncAt,omitempty"`
	LastSyncStatus  *string            `json:"lastSyncStatus,omitempty"`
	LastSyncError   *string            `json:"lastSyncError,omitempty"`
	LastSyncStats   map[string]any     `json:"lastSyncStats,omitempty"`
	LastSyncHistory []SyncHistoryEntry `json:"lastSyncHistory,omitempty"`

	// Extra holds any settings key this struct does not model explicitly,
	// so a round-trip through Settings never drops unrecognized data.
	Extra map[string]any `json:"-"`
}

// settingsReservedKeys lists every wire key Settings models explicitly.
// MarshalJSON/UnmarshalJSON use it to split the free-form document between
// the known sub-objects and Extra.
var settingsReservedKeys = map[string]struct{}{
	"ai":                {},
	"gtd":               {},
	"features":          {},
	"diagnostics":       {},
	"attachments":       {},
	"externalCalendars": {},
	"lastSyncAt":        {},
	"lastSyncStatus":    {},
	"lastSyncError":     {},
	"lastSyncStats":     {},
	"lastSyncHistory":   {},
}

// settingsAlias has the same fields as Settings minus its MarshalJSON/
// UnmarshalJSON methods, so the custom codec can delegate the reserved
// sub-objects to encoding/json's struct-tag handling without recursing.
type settingsAlias Settings

// MarshalJSON implements json.Marshaler. The reserved sub-objects are
// encoded the normal struct-tag way; Extra's keys are then merged in
// underneath them so an unmodeled top-level key round-trips unchanged.
func (s Settings) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(settingsAlias(s))
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(s.Extra)+8)
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, reserved := settingsReservedKeys[k]; reserved {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements json.Unmarshaler. Reserved sub-objects decode
// into their struct fields as usual; every other top-level key is captured
// into Extra instead of being dropped.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var alias settingsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = Settings(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, reserved := settingsReservedKeys[k]; reserved {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		extra[k] = val
	}
	if len(extra) > 0 {
		s.Extra = extra
	}
	return nil
}

// AppData is the full serialized sync document (spec.md §3).
type AppData struct {
	Tasks    []*Task    `json:"tasks"`
	Projects []*Project `json:"projects"`
	Sections []*Section `json:"sections"`
	Areas    []*Area    `json:"areas"`
	Settings Settings   `json:"settings"`
}

// Empty returns a freshly-initialized, non-nil AppData with empty slices,
// matching the "fresh clone" fixture in spec.md §8 scenario 1.
func Empty() *AppData {
	return &AppData{
		Tasks:    []*Task{},
		Projects: []*Project{},
		Sections: []*Section{},
		Areas:    []*Area{},
		Settings: Settings{},
	}
}
