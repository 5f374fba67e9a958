package booking

import "fmt"

// Event is one input to the negotiation machine.
type Event string

const (
	EventAccept           Event = "accept"
	EventAcceptManual     Event = "accept_manual"
	EventDecline          Event = "decline"
	EventNoAvailability   Event = "no_availability"
	EventNeedName         Event = "need_name"
	EventNeedPhone        Event = "need_phone"
	EventIdentityComplete Event = "identity_complete"
	EventConfirm          Event = "confirm"
	EventProposeCustom    Event = "propose_custom"
	EventCustomRejected   Event = "custom_rejected"
	EventSlotTaken        Event = "slot_taken"
	EventRefresh          Event = "refresh"
	EventRestart          Event = "restart"
	EventRetryCustom      Event = "retry_custom"
)

// transitions is the whole machine. Terminal modes have no entries except
// not_available, which can restart.
var transitions = map[Mode]map[Event]Mode{
	ModeOffer: {
		EventAccept:       ModeSlots,
		EventAcceptManual: ModeAwaitingCustomTime,
		EventDecline:      ModeDeclined,
	},
	ModeSlots: {
		EventNoAvailability: ModeNotAvailable,
		EventNeedName:       ModeAwaitingName,
		EventNeedPhone:      ModeAwaitingPhone,
		EventConfirm:        ModeConfirmed,
		EventProposeCustom:  ModeAwaitingCustomTime,
		EventRetryCustom:    ModeAwaitingCustomTime,
		EventSlotTaken:      ModeSlots,
		EventRefresh:        ModeSlots,
		EventDecline:        ModeDeclined,
	},
	ModeAwaitingName: {
		EventNeedPhone:        ModeAwaitingPhone,
		EventIdentityComplete: ModeSlots,
		EventRetryCustom:      ModeAwaitingCustomTime,
		EventConfirm:          ModeConfirmed,
		EventSlotTaken:        ModeSlots,
		EventRefresh:          ModeSlots,
		EventNoAvailability:   ModeNotAvailable,
		EventDecline:          ModeDeclined,
	},
	ModeAwaitingPhone: {
		EventNeedName:         ModeAwaitingName,
		EventIdentityComplete: ModeSlots,
		EventRetryCustom:      ModeAwaitingCustomTime,
		EventConfirm:          ModeConfirmed,
		EventSlotTaken:        ModeSlots,
		EventRefresh:          ModeSlots,
		EventNoAvailability:   ModeNotAvailable,
		EventDecline:          ModeDeclined,
	},
	ModeAwaitingCustomTime: {
		EventNeedName:       ModeAwaitingName,
		EventNeedPhone:      ModeAwaitingPhone,
		EventConfirm:        ModeConfirmed,
		EventCustomRejected: ModeSlots,
		EventRetryCustom:    ModeAwaitingCustomTime,
		EventSlotTaken:      ModeSlots,
		EventDecline:        ModeDeclined,
	},
	ModeNotAvailable: {
		EventRestart: ModeOffer,
	},
}

// next returns the mode reached from m on e.
func next(m Mode, e Event) (Mode, error) {
	if to, ok := transitions[m][e]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, m)
}
