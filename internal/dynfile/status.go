package dynfile

// Status classifies how a dynamic file relates to what is on disk.
type Status string

const (
	StatusCreated       Status = "created"
	StatusDisabled      Status = "disabled"
	StatusUnchanged     Status = "unchanged"
	StatusModified      Status = "modified"
	StatusRemoved       Status = "removed"
	StatusMoved         Status = "moved"
	StatusMovedModified Status = "moved_modified"
	StatusMovedRemoved  Status = "moved_removed"
)

type statusInfo struct {
	label       string
	icon        string
	description string
}

var statusTable = map[Status]statusInfo{
	StatusCreated:       {"Created", "🟢", "file did not exist and is now generated"},
	StatusDisabled:      {"Disabled", "⚫", "feature is not enabled, nothing to generate"},
	StatusUnchanged:     {"Unchanged", "⚪", "on-disk content already matches"},
	StatusModified:      {"Modified", "🔵", "on-disk content differs and is updated"},
	StatusRemoved:       {"Removed", "🔴", "feature was disabled, existing file is removed"},
	StatusMoved:         {"Moved", "🟣", "file is relocated from a legacy path"},
	StatusMovedModified: {"Moved & Modified", "🟠", "file is relocated and its content updated"},
	StatusMovedRemoved:  {"Moved & Removed", "🟤", "feature was disabled, legacy file is removed"},
}

// AllStatuses returns every status in legend order.
func AllStatuses() []Status {
	return []Status{
		StatusCreated,
		StatusModified,
		StatusRemoved,
		StatusMoved,
		StatusMovedModified,
		StatusMovedRemoved,
		StatusUnchanged,
		StatusDisabled,
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Label returns the human readable name of the status.
func (s Status) Label() string {
	if info, ok := statusTable[s]; ok {
		return info.label
	}
	return string(s)
}

// Icon returns the emoji used for the status in reports.
func (s Status) Icon() string {
	if info, ok := statusTable[s]; ok {
		return info.icon
	}
	return "❔"
}

// Description returns the legend text for the status.
func (s Status) Description() string {
	return statusTable[s].description
}

// Changed reports whether the status means the on-disk state needs an update.
// Disabled entries were never enabled, so they count as unchanged.
func (s Status) Changed() bool {
	switch s {
	case StatusUnchanged, StatusDisabled:
		return false
	}
	return s.Valid()
}

// IsMove reports whether the status belongs to the moved family.
func (s Status) IsMove() bool {
	switch s {
	case StatusMoved, StatusMovedModified, StatusMovedRemoved:
		return true
	}
	return false
}
