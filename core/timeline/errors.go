package timeline

import "fmt"

// PlacementReason 放置失败的类型化原因
type PlacementReason string

const (
	ReasonOverlap     PlacementReason = "overlap"
	ReasonDuplicateID PlacementReason = "duplicate_id"
	ReasonTooShort    PlacementReason = "too_short"
	ReasonNotFound    PlacementReason = "not_found"
)

// PlacementError 表示被拒绝的放置操作。
// 被拒绝的操作不会对模型产生任何修改，调用方通过 errors.As 取出原因，
// 作为内联校验反馈展示，不作为异常向上抛。
type PlacementError struct {
	Reason  PlacementReason
	ClipID  string
	TrackID string
	Detail  string
}

func (e *PlacementError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("placement rejected (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("placement rejected (%s)", e.Reason)
}

func overlapErr(clipID, trackID string) error {
	return &PlacementError{Reason: ReasonOverlap, ClipID: clipID, TrackID: trackID,
		Detail: "clip would overlap an existing clip on the track"}
}

func duplicateErr(clipID string) error {
	return &PlacementError{Reason: ReasonDuplicateID, ClipID: clipID,
		Detail: "a clip with this id already exists"}
}

func tooShortErr(clipID string) error {
	return &PlacementError{Reason: ReasonTooShort, ClipID: clipID,
		Detail: "resulting clip would be shorter than the 0.1s minimum"}
}

func notFoundErr(kind, id string) error {
	return &PlacementError{Reason: ReasonNotFound, ClipID: id,
		Detail: kind + " not found"}
}
