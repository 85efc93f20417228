package models

// ModalKind identifies which sticky modal is (or should be) on screen.
// Persisted in the session store so a reload can reconstruct the modal from
// current status plus the flag, independent of the transient event that
// first opened it.
type ModalKind string

const (
	ModalNone       ModalKind = ""
	ModalUpNext     ModalKind = "up_next"
	ModalInProgress ModalKind = "in_progress"
	ModalFeedback   ModalKind = "feedback"
	ModalCancelled  ModalKind = "cancelled"
	ModalTooFar     ModalKind = "too_far"
)

// NotificationFlags is the durable slice of notification state that must
// survive tab reload and backgrounding.
type NotificationFlags struct {
	HasUnreadFromBarber bool      `json:"has_unread_from_barber"`
	StickyModalKind     ModalKind `json:"sticky_modal_kind"`
}
