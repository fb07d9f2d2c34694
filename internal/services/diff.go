package services

import (
	"sort"
	"time"

	"focustrack-backend/internal/models"
)

// Reschedule diff engine: classifies per-task deltas between the schedule in
// force and the optimizer's proposal.

// Reason strings shown to the user alongside each classified change.
const (
	reasonPushed    = "前のタスクの延長により後ろ倒し"
	reasonReordered = "優先度の見直しにより順序変更"
	reasonAdded     = "新しいタスクが追加されました"
	reasonRemoved   = "本日の計画から除外されました"
)

// DiffConfig tunes the classification thresholds. The reorder/push boundary
// is deliberately configurable: a slot move of at most ReorderBlockThreshold
// positions counts as a reorder within the same block, anything farther that
// also lands later in the day is a push.
type DiffConfig struct {
	ReorderBlockThreshold int
	SignificantShift      time.Duration
}

func DefaultDiffConfig() DiffConfig {
	return DiffConfig{
		ReorderBlockThreshold: 1,
		SignificantShift:      5 * time.Minute,
	}
}

// BuildScheduleDiff compares an original assignment list against a proposed
// one and aggregates classified changes. Tasks with identical slots and
// near-identical times are excluded; diffing a schedule against itself yields
// zero changes.
func BuildScheduleDiff(original, proposed []models.ScheduleAssignment, cfg DiffConfig) models.ScheduleDiff {
	if cfg.ReorderBlockThreshold <= 0 {
		cfg.ReorderBlockThreshold = 1
	}

	originalBy := make(map[string]models.ScheduleAssignment, len(original))
	for _, a := range original {
		originalBy[a.TaskID.String()] = a
	}
	proposedBy := make(map[string]models.ScheduleAssignment, len(proposed))
	for _, a := range proposed {
		proposedBy[a.TaskID.String()] = a
	}

	var diff models.ScheduleDiff

	for _, old := range sortBySlot(original) {
		next, ok := proposedBy[old.TaskID.String()]
		if !ok {
			idx := old.SlotIndex
			diff.Removed = append(diff.Removed, models.ScheduleDiffItem{
				TaskID:            old.TaskID,
				TaskTitle:         old.TaskTitle,
				ChangeType:        models.ChangeRemoved,
				OriginalSlotIndex: &idx,
				Reason:            reasonRemoved,
			})
			continue
		}

		if item, ok := classifyMoved(old, next, cfg); ok {
			switch item.ChangeType {
			case models.ChangePushed:
				diff.Pushed = append(diff.Pushed, item)
			case models.ChangeReordered:
				diff.Reordered = append(diff.Reordered, item)
			}
		}
	}

	for _, next := range sortBySlot(proposed) {
		if _, ok := originalBy[next.TaskID.String()]; ok {
			continue
		}
		idx := next.SlotIndex
		diff.Added = append(diff.Added, models.ScheduleDiffItem{
			TaskID:       next.TaskID,
			TaskTitle:    next.TaskTitle,
			ChangeType:   models.ChangeAdded,
			NewSlotIndex: &idx,
			Reason:       reasonAdded,
		})
	}

	diff.TotalChanges = len(diff.Pushed) + len(diff.Added) + len(diff.Removed) + len(diff.Reordered)
	diff.HasSignificantChanges = diff.TotalChanges > 0
	return diff
}

// classifyMoved decides pushed vs reordered for a task present in both lists.
// Same-slot entries only register when the start time slid by at least the
// significance threshold; order-preserving shifts below it are noise from the
// optimizer and are dropped.
func classifyMoved(old, next models.ScheduleAssignment, cfg DiffConfig) (models.ScheduleDiffItem, bool) {
	origIdx, newIdx := old.SlotIndex, next.SlotIndex
	shift := next.StartAt.Sub(old.StartAt)

	if origIdx == newIdx {
		if shift < cfg.SignificantShift && shift > -cfg.SignificantShift {
			return models.ScheduleDiffItem{}, false
		}
		change := models.ChangeReordered
		reason := reasonReordered
		if shift > 0 {
			change = models.ChangePushed
			reason = reasonPushed
		}
		return models.ScheduleDiffItem{
			TaskID:            old.TaskID,
			TaskTitle:         old.TaskTitle,
			ChangeType:        change,
			OriginalSlotIndex: &origIdx,
			NewSlotIndex:      &newIdx,
			Reason:            reason,
		}, true
	}

	slotDelta := newIdx - origIdx
	if slotDelta < 0 {
		slotDelta = -slotDelta
	}

	change := models.ChangeReordered
	reason := reasonReordered
	if next.StartAt.After(old.StartAt) && slotDelta > cfg.ReorderBlockThreshold {
		change = models.ChangePushed
		reason = reasonPushed
	}
	return models.ScheduleDiffItem{
		TaskID:            old.TaskID,
		TaskTitle:         old.TaskTitle,
		ChangeType:        change,
		OriginalSlotIndex: &origIdx,
		NewSlotIndex:      &newIdx,
		Reason:            reason,
	}, true
}

func sortBySlot(in []models.ScheduleAssignment) []models.ScheduleAssignment {
	out := make([]models.ScheduleAssignment, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out
}
